// Package categorization infers a category and a clean merchant name from a
// raw transaction description. Inference is best effort: a miss leaves the
// category empty and never fails an import.
package categorization

import (
	"errors"

	"github.com/google/uuid"
)

var ErrEmptyPattern = errors.New("rule pattern is empty")

// Rule priority bands. Profile rules always outrank merchants, and a
// profile's own merchants outrank the shared list.
const (
	rulePriorityBase     = 1000
	profileMerchantBoost = 100
)

// Method records which stage produced a Result.
type Method string

const (
	MethodRule     Method = "rule"
	MethodMerchant Method = "merchant"
	MethodFuzzy    Method = "fuzzy"
	MethodNone     Method = "none"
)

// CategoryRule is a profile-defined mapping from a description substring to a
// category. MatchPattern may carry SQL LIKE wildcards, which are ignored.
type CategoryRule struct {
	ID           uuid.UUID
	ProfileID    uuid.UUID
	MatchPattern string
	CleanName    *string
	CategoryID   *uuid.UUID
	IsRecurring  bool
	Priority     int
}

// Merchant is a known merchant. ProfileID is nil for the shared list.
type Merchant struct {
	ID                uuid.UUID
	ProfileID         *uuid.UUID
	RawPattern        string
	CleanName         string
	DefaultCategoryID *uuid.UUID
	IsSystem          bool
}

// Result is the outcome of categorizing one description.
type Result struct {
	CleanMerchantName string
	CategoryID        *uuid.UUID
	IsRecurring       bool
	RuleID            *uuid.UUID
	MerchantID        *uuid.UUID
	Method            Method
	// Score is 100 for substring matches and the similarity score for fuzzy ones.
	Score int
}
