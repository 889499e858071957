package categorization

import (
	"sort"
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"
	"github.com/google/uuid"
)

// MatchResult is one pattern hit with the metadata of the rule or merchant
// that owns it.
type MatchResult struct {
	Pattern     string
	CleanName   string
	CategoryID  *uuid.UUID
	IsRecurring bool
	RuleID      *uuid.UUID
	MerchantID  *uuid.UUID
	Priority    int
	IsRule      bool
}

// Engine matches every rule and merchant pattern against a description in a
// single pass using an Aho-Corasick automaton. Build may be called again to
// swap the pattern set while readers are matching.
type Engine struct {
	mu       sync.RWMutex
	matcher  *ahocorasick.Matcher
	patterns []string
	// metadata[i] holds every owner of patterns[i]; a rule and a merchant may
	// share a pattern.
	metadata [][]MatchResult
}

// NewEngine builds an engine from rules and merchants.
func NewEngine(rules []CategoryRule, merchants []Merchant) *Engine {
	e := &Engine{}
	e.Build(rules, merchants)
	return e
}

// normalizePattern strips LIKE wildcards and upper-cases for matching.
func normalizePattern(p string) string {
	return strings.ToUpper(strings.TrimSpace(strings.Trim(p, "%")))
}

func merchantPriority(m Merchant) int {
	if m.ProfileID != nil {
		return profileMerchantBoost
	}
	return 0
}

// Build replaces the pattern set.
func (e *Engine) Build(rules []CategoryRule, merchants []Merchant) {
	index := make(map[string]int, len(rules)+len(merchants))
	var (
		patterns []string
		metadata [][]MatchResult
	)
	add := func(pattern string, m MatchResult) {
		if i, ok := index[pattern]; ok {
			metadata[i] = append(metadata[i], m)
			return
		}
		index[pattern] = len(patterns)
		patterns = append(patterns, pattern)
		metadata = append(metadata, []MatchResult{m})
	}

	for _, rule := range rules {
		pattern := normalizePattern(rule.MatchPattern)
		if pattern == "" {
			continue
		}
		ruleID := rule.ID
		m := MatchResult{
			Pattern:     rule.MatchPattern,
			CategoryID:  rule.CategoryID,
			IsRecurring: rule.IsRecurring,
			RuleID:      &ruleID,
			Priority:    rule.Priority + rulePriorityBase,
			IsRule:      true,
		}
		if rule.CleanName != nil {
			m.CleanName = *rule.CleanName
		}
		add(pattern, m)
	}

	for _, merchant := range merchants {
		pattern := normalizePattern(merchant.RawPattern)
		if pattern == "" {
			continue
		}
		merchantID := merchant.ID
		add(pattern, MatchResult{
			Pattern:    merchant.RawPattern,
			CleanName:  merchant.CleanName,
			CategoryID: merchant.DefaultCategoryID,
			MerchantID: &merchantID,
			Priority:   merchantPriority(merchant),
		})
	}

	var matcher *ahocorasick.Matcher
	if len(patterns) > 0 {
		matcher = ahocorasick.NewStringMatcher(patterns)
	}

	e.mu.Lock()
	e.matcher = matcher
	e.patterns = patterns
	e.metadata = metadata
	e.mu.Unlock()
}

// hits returns the pattern indexes found in description. Callers hold e.mu
// for reading, so several goroutines may match at once.
func (e *Engine) hits(description string) []int {
	if e.matcher == nil {
		return nil
	}
	return e.matcher.MatchThreadSafe([]byte(strings.ToUpper(description)))
}

func (e *Engine) best(hits []int) *MatchResult {
	var best *MatchResult
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.metadata) {
			continue
		}
		for i := range e.metadata[idx] {
			m := e.metadata[idx][i]
			if best == nil || m.Priority > best.Priority {
				best = &m
			}
		}
	}
	return best
}

// Match returns the highest-priority hit in description, or nil.
func (e *Engine) Match(description string) *MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.best(e.hits(description))
}

// MatchAll returns every hit, highest priority first.
func (e *Engine) MatchAll(description string) []MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []MatchResult
	for _, idx := range e.hits(description) {
		if idx >= 0 && idx < len(e.metadata) {
			out = append(out, e.metadata[idx]...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

// MatchBatch matches many descriptions under one read lock. The result is
// aligned with descriptions; misses are nil.
func (e *Engine) MatchBatch(descriptions []string) []*MatchResult {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*MatchResult, len(descriptions))
	for i, d := range descriptions {
		out[i] = e.best(e.hits(d))
	}
	return out
}

// PatternCount returns the number of distinct patterns loaded.
func (e *Engine) PatternCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.patterns)
}

func (e *Engine) IsEmpty() bool {
	return e.PatternCount() == 0
}
