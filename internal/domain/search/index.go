// Package search keeps a full-text index over transaction merchants and
// descriptions.
package search

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/google/uuid"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

const defaultLimit = 20

var ErrEmptyQuery = errors.New("search query is empty")

// Document is the indexed projection of a transaction.
type Document struct {
	ID          string  `json:"id"`
	ProfileID   string  `json:"profile_id"`
	Merchant    string  `json:"merchant"`
	Description string  `json:"description"`
	CategoryID  string  `json:"category_id"`
	Direction   string  `json:"direction"`
	EntrySource string  `json:"entry_source"`
	AmountMinor float64 `json:"amount_minor"`
	OccurredAt  string  `json:"occurred_at"`
}

// Hit is one search result.
type Hit struct {
	ID    uuid.UUID
	Score float64
}

// Index wraps a bleve index. An empty path keeps it in memory.
type Index struct {
	mu    sync.RWMutex
	index bleve.Index
}

// Open creates or opens the index at path.
func Open(path string) (*Index, error) {
	var (
		idx bleve.Index
		err error
	)
	switch {
	case path == "":
		idx, err = bleve.NewMemOnly(buildMapping())
	default:
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("create index directory: %w", err)
			}
			idx, err = bleve.New(path, buildMapping())
		} else {
			idx, err = bleve.Open(path)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{index: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = simple.Name

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("merchant", text)
	doc.AddFieldMappingsAt("description", text)
	doc.AddFieldMappingsAt("profile_id", exact)
	doc.AddFieldMappingsAt("category_id", exact)
	doc.AddFieldMappingsAt("direction", exact)
	doc.AddFieldMappingsAt("entry_source", exact)
	doc.AddFieldMappingsAt("amount_minor", bleve.NewNumericFieldMapping())
	doc.AddFieldMappingsAt("occurred_at", bleve.NewDateTimeFieldMapping())

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = simple.Name
	return m
}

// DocumentFor projects tx onto the index schema.
func DocumentFor(tx *transaction.Transaction) Document {
	d := Document{
		ID:          tx.ID.String(),
		ProfileID:   tx.ProfileID.String(),
		Merchant:    tx.MerchantOrEmpty(),
		Description: tx.DescriptionOrEmpty(),
		Direction:   string(tx.Direction),
		EntrySource: string(tx.EntrySource),
		AmountMinor: float64(tx.AmountMinor),
		OccurredAt:  tx.OccurredAt.UTC().Format(time.RFC3339),
	}
	if tx.CategoryID != nil {
		d.CategoryID = tx.CategoryID.String()
	}
	return d
}

// IndexTransactions adds or replaces documents in one batch.
func (i *Index) IndexTransactions(ctx context.Context, txs []*transaction.Transaction) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.index.NewBatch()
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return err
		}
		d := DocumentFor(tx)
		if err := batch.Index(d.ID, d); err != nil {
			return fmt.Errorf("index transaction %s: %w", d.ID, err)
		}
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("apply index batch: %w", err)
	}
	return nil
}

// Remove deletes a document. Removing an unknown id is not an error.
func (i *Index) Remove(id uuid.UUID) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Delete(id.String())
}

// Search runs a typo-tolerant match over merchant and description, optionally
// scoped to a profile.
func (i *Index) Search(q string, limit int, profileID *uuid.UUID) ([]Hit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, ErrEmptyQuery
	}
	match := bleve.NewMatchQuery(q)
	match.SetFuzziness(1)
	return i.run(scoped(match, profileID), limit)
}

// SearchPrefix matches terms starting with prefix, for type-ahead.
func (i *Index) SearchPrefix(prefix string, limit int, profileID *uuid.UUID) ([]Hit, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil, ErrEmptyQuery
	}
	byMerchant := bleve.NewPrefixQuery(prefix)
	byMerchant.SetField("merchant")
	byDescription := bleve.NewPrefixQuery(prefix)
	byDescription.SetField("description")
	return i.run(scoped(bleve.NewDisjunctionQuery(byMerchant, byDescription), profileID), limit)
}

// SearchQueryString accepts bleve query syntax, e.g. "+esselunga -milano".
func (i *Index) SearchQueryString(q string, limit int) ([]Hit, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	return i.run(bleve.NewQueryStringQuery(q), limit)
}

// ByCategory returns documents tagged with categoryID.
func (i *Index) ByCategory(categoryID uuid.UUID, limit int) ([]Hit, error) {
	term := bleve.NewTermQuery(categoryID.String())
	term.SetField("category_id")
	return i.run(term, limit)
}

func scoped(q query.Query, profileID *uuid.UUID) query.Query {
	if profileID == nil {
		return q
	}
	profile := bleve.NewTermQuery(profileID.String())
	profile.SetField("profile_id")
	return bleve.NewConjunctionQuery(q, profile)
}

func (i *Index) run(q query.Query, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	i.mu.RLock()
	res, err := i.index.Search(req)
	i.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		id, err := uuid.Parse(h.ID)
		if err != nil {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: h.Score})
	}
	return hits, nil
}

func (i *Index) DocCount() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.index.DocCount()
}

func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.index.Close()
}
