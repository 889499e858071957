package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

const revolutStatement = `Type,Product,Started Date,Completed Date,Description,Amount,Fee,Currency,State,Balance
CARD_PAYMENT,Current,2024-03-02 10:15:00,2024-03-03 09:00:00,Esselunga,-45.99,0.00,EUR,COMPLETED,954.01
TOPUP,Current,2024-03-01 08:00:00,2024-03-01 08:00:05,Top-up by *1234,1000.00,0.00,EUR,COMPLETED,1000.00
CARD_PAYMENT,Current,2024-03-04 19:30:00,,Pizzeria Da Michele,-23.50,0.00,EUR,PENDING,
CARD_PAYMENT,Current,not a date,2024-03-05 09:00:00,Broken,-1.00,0.00,EUR,COMPLETED,930.51
`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testTarget() transaction.Target {
	return transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()}
}

type stubCategorizer struct {
	category uuid.UUID
	err      error
	calls    int
}

func (s *stubCategorizer) CategorizeBatch(_ context.Context, _ uuid.UUID, descriptions []string) ([]*CategorizationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([]*CategorizationResult, len(descriptions))
	for i, d := range descriptions {
		if strings.Contains(strings.ToUpper(d), "ESSELUNGA") {
			out[i] = &CategorizationResult{CleanMerchantName: "Esselunga S.p.A.", CategoryID: &s.category, Matched: true}
			continue
		}
		out[i] = &CategorizationResult{CleanMerchantName: d}
	}
	return out, nil
}

type recordingIndexer struct {
	indexed []*transaction.Transaction
}

func (r *recordingIndexer) Index(_ context.Context, txs []*transaction.Transaction) error {
	r.indexed = append(r.indexed, txs...)
	return nil
}

func TestImportFile_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := transaction.NewMemoryRepository()
	svc := NewImportService(repo, discardLogger()).WithBatchSize(1)
	target := testTarget()

	first, err := svc.ImportFile(ctx, []byte(revolutStatement), target)
	require.NoError(t, err)
	assert.Equal(t, sniffer.FormatA, first.Format)
	assert.Equal(t, "Revolut", first.FormatLabel)
	assert.Equal(t, 2, first.Parsed)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 0, first.Duplicates)
	assert.Equal(t, 1, first.Skipped)
	assert.Equal(t, 1, first.Failed)
	require.Len(t, first.Errors, 1)
	assert.Contains(t, first.Errors[0], "row 5")
	assert.NotEmpty(t, first.Fingerprint)

	second, err := svc.ImportFile(ctx, []byte(revolutStatement), target)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Duplicates)
	assert.Equal(t, 2, repo.Len())
}

func TestImportText_UnknownFormat(t *testing.T) {
	svc := NewImportService(transaction.NewMemoryRepository(), discardLogger())

	_, err := svc.ImportText(context.Background(), "foo,bar\n1,2\n", testTarget())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = svc.ImportFile(context.Background(), nil, testTarget())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportFormat_StructuralFailure(t *testing.T) {
	svc := NewImportService(transaction.NewMemoryRepository(), discardLogger())

	res, err := svc.ImportFormat(context.Background(), sniffer.FormatB, "TransferWise ID,Date\nX,01-01-2024\n", testTarget())
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Inserted)
}

func TestImportFile_CategorizesAndIndexes(t *testing.T) {
	ctx := context.Background()
	repo := transaction.NewMemoryRepository()
	cat := &stubCategorizer{category: uuid.New()}
	idx := &recordingIndexer{}
	svc := NewImportService(repo, discardLogger()).
		WithCategorizationService(cat).
		WithIndexer(idx)
	target := testTarget()

	_, err := svc.ImportFile(ctx, []byte(revolutStatement), target)
	require.NoError(t, err)
	require.Len(t, idx.indexed, 2)

	stored, err := repo.ListByProfile(ctx, target.ProfileID)
	require.NoError(t, err)
	require.Len(t, stored, 2)

	var esselunga, topup *transaction.Transaction
	for _, tx := range stored {
		if tx.DescriptionOrEmpty() == "Esselunga" {
			esselunga = tx
		} else {
			topup = tx
		}
	}
	require.NotNil(t, esselunga)
	require.NotNil(t, topup)
	assert.Equal(t, "Esselunga S.p.A.", esselunga.MerchantOrEmpty())
	assert.Equal(t, &cat.category, esselunga.CategoryID)
	assert.Equal(t, "Top-up by *1234", topup.MerchantOrEmpty())
	assert.Nil(t, topup.CategoryID)

	// a re-import stores nothing, so nothing new is indexed
	_, err = svc.ImportFile(ctx, []byte(revolutStatement), target)
	require.NoError(t, err)
	assert.Len(t, idx.indexed, 2)
}

func TestImportFile_CategorizationFailureIsNotFatal(t *testing.T) {
	repo := transaction.NewMemoryRepository()
	svc := NewImportService(repo, discardLogger()).
		WithCategorizationService(&stubCategorizer{err: errors.New("boom")})

	res, err := svc.ImportFile(context.Background(), []byte(revolutStatement), testTarget())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
}

func TestImportFile_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := transaction.NewMemoryRepository()

	_, err := NewImportService(repo, discardLogger()).ImportFile(ctx, []byte(revolutStatement), testTarget())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.Len())
}
