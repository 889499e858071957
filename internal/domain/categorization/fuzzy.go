package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// DefaultFuzzyThreshold is the minimum similarity accepted by the fallback.
const DefaultFuzzyThreshold = 80

// FuzzyMatch is a similarity hit. Score runs 0..100.
type FuzzyMatch struct {
	Pattern     string
	CleanName   string
	CategoryID  *uuid.UUID
	IsRecurring bool
	RuleID      *uuid.UUID
	MerchantID  *uuid.UUID
	Score       int
	Distance    int
	priority    int
}

// FuzzyMatcher catches merchant spellings the exact engine misses, such as
// "ESSELUNGA MI 0423" against a "ESSELUNGA MILANO" merchant.
type FuzzyMatcher struct {
	mu       sync.RWMutex
	patterns []FuzzyMatch
}

func NewFuzzyMatcher(rules []CategoryRule, merchants []Merchant) *FuzzyMatcher {
	fm := &FuzzyMatcher{}
	fm.Build(rules, merchants)
	return fm
}

// Build replaces the candidate set.
func (fm *FuzzyMatcher) Build(rules []CategoryRule, merchants []Merchant) {
	patterns := make([]FuzzyMatch, 0, len(rules)+len(merchants))
	for _, rule := range rules {
		p := normalizePattern(rule.MatchPattern)
		if p == "" {
			continue
		}
		ruleID := rule.ID
		m := FuzzyMatch{
			Pattern:     p,
			CategoryID:  rule.CategoryID,
			IsRecurring: rule.IsRecurring,
			RuleID:      &ruleID,
			priority:    rule.Priority + rulePriorityBase,
		}
		if rule.CleanName != nil {
			m.CleanName = *rule.CleanName
		}
		patterns = append(patterns, m)
	}
	for _, merchant := range merchants {
		p := normalizePattern(merchant.RawPattern)
		if p == "" {
			continue
		}
		merchantID := merchant.ID
		patterns = append(patterns, FuzzyMatch{
			Pattern:    p,
			CleanName:  merchant.CleanName,
			CategoryID: merchant.DefaultCategoryID,
			MerchantID: &merchantID,
			priority:   merchantPriority(merchant),
		})
	}

	fm.mu.Lock()
	fm.patterns = patterns
	fm.mu.Unlock()
}

func (fm *FuzzyMatcher) scored(description string) []FuzzyMatch {
	input := strings.ToUpper(strings.TrimSpace(description))
	out := make([]FuzzyMatch, 0, len(fm.patterns))
	for _, p := range fm.patterns {
		m := p
		m.Score = similarity(input, p.Pattern)
		m.Distance = fuzzy.LevenshteinDistance(input, p.Pattern)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].priority > out[j].priority
	})
	return out
}

// Match returns the best candidate scoring at least threshold, or nil.
func (fm *FuzzyMatcher) Match(description string, threshold int) *FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	ranked := fm.scored(description)
	if len(ranked) == 0 || ranked[0].Score < threshold {
		return nil
	}
	best := ranked[0]
	return &best
}

// MatchAll returns every candidate scoring at least threshold, best first.
func (fm *FuzzyMatcher) MatchAll(description string, threshold int) []FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	var out []FuzzyMatch
	for _, m := range fm.scored(description) {
		if m.Score < threshold {
			break
		}
		out = append(out, m)
	}
	return out
}

// RankMatches returns up to limit candidates ordered by similarity. A limit of
// zero returns all of them.
func (fm *FuzzyMatcher) RankMatches(description string, limit int) []FuzzyMatch {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	ranked := fm.scored(description)
	if limit > 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return ranked
}

func (fm *FuzzyMatcher) PatternCount() int {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return len(fm.patterns)
}

// GroupSimilar clusters descriptions whose similarity to the first member of
// a cluster reaches threshold. Keys are the first member; order of members is
// preserved.
func GroupSimilar(descriptions []string, threshold int) map[string][]string {
	groups := make(map[string][]string)
	assigned := make([]bool, len(descriptions))
	for i, head := range descriptions {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []string{head}
		upper := strings.ToUpper(head)
		for j := i + 1; j < len(descriptions); j++ {
			if assigned[j] {
				continue
			}
			if similarity(upper, strings.ToUpper(descriptions[j])) >= threshold {
				assigned[j] = true
				group = append(group, descriptions[j])
			}
		}
		groups[head] = append(groups[head], group...)
	}
	return groups
}

// similarity scores two upper-cased strings from 0 to 100. Containment scores
// 75 and up, scaled by how much of the longer string the shorter covers;
// otherwise the better of edit-distance similarity and an in-order subsequence
// rank is used.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if strings.Contains(long, short) {
		return 75 + 25*len(short)/len(long)
	}

	longest := len([]rune(a))
	if n := len([]rune(b)); n > longest {
		longest = n
	}
	edit := 100 * (longest - fuzzy.LevenshteinDistance(a, b)) / longest

	subseq := 0
	if rank := fuzzy.RankMatchFold(short, long); rank >= 0 {
		subseq = 60 - rank*40/len(long)
	}

	if edit > subseq {
		return edit
	}
	return subseq
}
