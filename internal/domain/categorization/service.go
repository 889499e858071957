package categorization

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// matchers is the compiled pattern set of one profile.
type matchers struct {
	engine *Engine
	fuzzy  *FuzzyMatcher
}

// Service categorizes descriptions against a profile's rules and the known
// merchants. Compiled matchers are cached per profile until a rule changes.
type Service struct {
	store     Store
	logger    *slog.Logger
	threshold int

	mu    sync.RWMutex
	cache map[uuid.UUID]*matchers
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		logger:    logger,
		threshold: DefaultFuzzyThreshold,
		cache:     make(map[uuid.UUID]*matchers),
	}
}

// WithFuzzyThreshold sets the minimum fuzzy score. Zero or less disables the
// fuzzy stage.
func (s *Service) WithFuzzyThreshold(threshold int) *Service {
	s.threshold = threshold
	return s
}

func (s *Service) matchers(ctx context.Context, profileID uuid.UUID) (*matchers, error) {
	s.mu.RLock()
	m, ok := s.cache[profileID]
	s.mu.RUnlock()
	if ok {
		return m, nil
	}

	rules, err := s.store.Rules(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	merchants, err := s.store.Merchants(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load merchants: %w", err)
	}

	m = &matchers{
		engine: NewEngine(rules, merchants),
		fuzzy:  NewFuzzyMatcher(rules, merchants),
	}
	s.mu.Lock()
	s.cache[profileID] = m
	s.mu.Unlock()
	return m, nil
}

// Invalidate drops the compiled matchers of a profile.
func (s *Service) Invalidate(profileID uuid.UUID) {
	s.mu.Lock()
	delete(s.cache, profileID)
	s.mu.Unlock()
}

// Categorize returns the best guess for one description. A store failure
// degrades to a cleaned name without a category.
func (s *Service) Categorize(ctx context.Context, profileID uuid.UUID, description string) (*Result, error) {
	results, err := s.CategorizeBatch(ctx, profileID, []string{description})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// CategorizeBatch categorizes descriptions in order. The exact engine runs
// first; the fuzzy matcher only sees the misses.
func (s *Service) CategorizeBatch(ctx context.Context, profileID uuid.UUID, descriptions []string) ([]*Result, error) {
	results := make([]*Result, len(descriptions))
	for i, d := range descriptions {
		results[i] = &Result{CleanMerchantName: CleanMerchantName(d), Method: MethodNone}
	}

	m, err := s.matchers(ctx, profileID)
	if err != nil {
		s.logger.Warn("categorization unavailable, returning cleaned names",
			slog.String("profile_id", profileID.String()),
			slog.Any("error", err))
		return results, nil
	}

	for i, hit := range m.engine.MatchBatch(descriptions) {
		if hit != nil {
			results[i] = fromMatch(hit, results[i].CleanMerchantName)
			continue
		}
		if s.threshold <= 0 {
			continue
		}
		if f := m.fuzzy.Match(descriptions[i], s.threshold); f != nil {
			results[i] = fromFuzzy(f, results[i].CleanMerchantName)
		}
	}
	return results, nil
}

func fromMatch(m *MatchResult, fallback string) *Result {
	r := &Result{
		CleanMerchantName: m.CleanName,
		CategoryID:        m.CategoryID,
		IsRecurring:       m.IsRecurring,
		RuleID:            m.RuleID,
		MerchantID:        m.MerchantID,
		Method:            MethodMerchant,
		Score:             100,
	}
	if m.IsRule {
		r.Method = MethodRule
	}
	if r.CleanMerchantName == "" {
		r.CleanMerchantName = fallback
	}
	return r
}

func fromFuzzy(f *FuzzyMatch, fallback string) *Result {
	r := &Result{
		CleanMerchantName: f.CleanName,
		CategoryID:        f.CategoryID,
		IsRecurring:       f.IsRecurring,
		RuleID:            f.RuleID,
		MerchantID:        f.MerchantID,
		Method:            MethodFuzzy,
		Score:             f.Score,
	}
	if r.CleanMerchantName == "" {
		r.CleanMerchantName = fallback
	}
	return r
}

// CreateRule stores a rule for the profile, or returns the existing one for
// the same pattern. With applyToExisting the rule is back-filled onto stored
// transactions; a back-fill failure is logged and the rule is kept.
func (s *Service) CreateRule(ctx context.Context, profileID uuid.UUID, pattern, cleanName string, categoryID *uuid.UUID, isRecurring, applyToExisting bool) (*CategoryRule, int64, error) {
	if normalizePattern(pattern) == "" {
		return nil, 0, ErrEmptyPattern
	}

	existing, err := s.store.FindRuleByPattern(ctx, profileID, pattern)
	if err != nil {
		return nil, 0, err
	}
	if existing != nil {
		return existing, 0, nil
	}

	rule := &CategoryRule{
		ProfileID:    profileID,
		MatchPattern: pattern,
		CategoryID:   categoryID,
		IsRecurring:  isRecurring,
	}
	if cleanName != "" {
		rule.CleanName = &cleanName
	}
	if err := s.store.CreateRule(ctx, rule); err != nil {
		return nil, 0, err
	}
	s.Invalidate(profileID)

	if !applyToExisting {
		return rule, 0, nil
	}
	updated, err := s.store.ApplyRule(ctx, profileID, pattern, cleanName, categoryID)
	if err != nil {
		s.logger.Error("rule back-fill failed",
			slog.String("rule_id", rule.ID.String()),
			slog.Any("error", err))
		return rule, 0, nil
	}
	return rule, updated, nil
}

var (
	purchasePrefixes = []string{
		"PAGAMENTO POS ",
		"PAGAMENTO CARTA ",
		"OPERAZIONE CARTA ",
		"COMPRAS C.DEB ",
		"CARD PURCHASE ",
		"DEBIT CARD ",
		"PURCHASE ",
		"COMPRA ",
		"POS ",
		"PAG*",
	}
	trailingCardRef = regexp.MustCompile(`\s*[*#]\d{1,6}$`)
)

// CleanMerchantName strips card-purchase prefixes and trailing reference
// numbers, then title-cases what is left.
func CleanMerchantName(description string) string {
	cleaned := strings.Join(strings.Fields(description), " ")
	for _, prefix := range purchasePrefixes {
		if len(cleaned) >= len(prefix) && strings.EqualFold(cleaned[:len(prefix)], prefix) {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}
	cleaned = trailingCardRef.ReplaceAllString(cleaned, "")
	return cases.Title(language.Und).String(strings.ToLower(cleaned))
}
