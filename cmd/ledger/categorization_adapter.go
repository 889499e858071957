package main

import (
	"context"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/categorization"
	importservice "github.com/FACorreiaa/pocket-ledger/internal/domain/import/service"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/quickentry"
)

// categorizationAdapter adapts categorization.Service to the interfaces the
// import and quick-entry services consume.
type categorizationAdapter struct {
	svc *categorization.Service
}

var (
	_ importservice.CategorizationService = (*categorizationAdapter)(nil)
	_ quickentry.Categorizer              = (*categorizationAdapter)(nil)
)

func newCategorizationAdapter(svc *categorization.Service) *categorizationAdapter {
	return &categorizationAdapter{svc: svc}
}

// CategorizeBatch implements importservice.CategorizationService
func (a *categorizationAdapter) CategorizeBatch(ctx context.Context, profileID uuid.UUID, descriptions []string) ([]*importservice.CategorizationResult, error) {
	results, err := a.svc.CategorizeBatch(ctx, profileID, descriptions)
	if err != nil {
		return nil, err
	}

	importResults := make([]*importservice.CategorizationResult, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		importResults[i] = &importservice.CategorizationResult{
			CleanMerchantName: r.CleanMerchantName,
			CategoryID:        r.CategoryID,
			Matched:           r.Method != categorization.MethodNone,
		}
	}
	return importResults, nil
}

// Suggest implements quickentry.Categorizer. Unmatched descriptions keep the
// typed text as merchant.
func (a *categorizationAdapter) Suggest(ctx context.Context, profileID uuid.UUID, description string) (string, *uuid.UUID, error) {
	r, err := a.svc.Categorize(ctx, profileID, description)
	if err != nil {
		return "", nil, err
	}
	if r == nil || r.Method == categorization.MethodNone {
		return "", nil, nil
	}
	return r.CleanMerchantName, r.CategoryID, nil
}
