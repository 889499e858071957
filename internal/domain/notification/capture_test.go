package notification

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

type captureFixture struct {
	repo   *transaction.MemoryRepository
	sw     *Switch
	svc    *CaptureService
	target transaction.Target
}

func newCaptureFixture(enabled bool, allowed ...string) *captureFixture {
	f := &captureFixture{
		repo:   transaction.NewMemoryRepository(),
		sw:     NewSwitch(enabled, allowed),
		target: transaction.Target{ProfileID: uuid.New(), WalletID: uuid.New(), SourceID: uuid.New()},
	}
	f.svc = NewCaptureService(f.repo, f.sw, "EUR", slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

var postedAt = time.Date(2024, 6, 1, 10, 15, 5, 0, time.UTC)

func TestCapture_Gating(t *testing.T) {
	ctx := context.Background()
	ev := Event{Package: PayPal.Package, Text: "PayPal: You sent €12.50 to Mario", PostedAt: postedAt}

	t.Run("disabled", func(t *testing.T) {
		f := newCaptureFixture(false)
		_, err := f.svc.Capture(ctx, ev, f.target)
		assert.ErrorIs(t, err, ErrCaptureDisabled)
		assert.Zero(t, f.repo.Len())

		f.sw.SetEnabled(true)
		_, err = f.svc.Capture(ctx, ev, f.target)
		require.NoError(t, err)
		assert.Equal(t, 1, f.repo.Len())
	})

	t.Run("unknown package", func(t *testing.T) {
		f := newCaptureFixture(true)
		_, err := f.svc.Capture(ctx, Event{Package: "com.example.bank", Text: ev.Text, PostedAt: postedAt}, f.target)
		assert.ErrorIs(t, err, ErrAppNotAllowed)
	})

	t.Run("not on allow-list", func(t *testing.T) {
		f := newCaptureFixture(true, Satispay.Package)
		_, err := f.svc.Capture(ctx, ev, f.target)
		assert.ErrorIs(t, err, ErrAppNotAllowed)
		assert.Zero(t, f.repo.Len())
	})
}

func TestCapture_ParsedIsConfirmedAndDeduplicated(t *testing.T) {
	ctx := context.Background()
	f := newCaptureFixture(true)
	ev := Event{Package: PayPal.Package, Text: "PayPal: You sent €12.50 to Mario Rossi", PostedAt: postedAt}

	out, err := f.svc.Capture(ctx, ev, f.target)
	require.NoError(t, err)
	require.True(t, out.Parsed)
	require.True(t, out.Inserted)

	tx := out.Transaction
	assert.True(t, tx.IsConfirmed)
	assert.Equal(t, int64(1250), tx.AmountMinor)
	assert.Equal(t, transaction.DirectionOut, tx.Direction)
	assert.Equal(t, "Mario Rossi", tx.MerchantOrEmpty())
	assert.Equal(t, transaction.EntrySource("NOTIFICATION_PAYPAL"), tx.EntrySource)
	require.NotNil(t, tx.ExternalID)

	// the OS re-delivers the same notification a few seconds later
	ev.PostedAt = postedAt.Add(20 * time.Second)
	again, err := f.svc.Capture(ctx, ev, f.target)
	require.NoError(t, err)
	assert.False(t, again.Inserted)
	assert.Equal(t, 1, f.repo.Len())
}

func TestCapture_PlaceholderWhenAmountMissing(t *testing.T) {
	ctx := context.Background()
	f := newCaptureFixture(true)
	ev := Event{Package: Satispay.Package, Text: "Satispay: pagamento in elaborazione", PostedAt: postedAt}

	out, err := f.svc.Capture(ctx, ev, f.target)
	require.NoError(t, err)
	assert.False(t, out.Parsed)
	assert.True(t, out.Inserted)

	tx := out.Transaction
	assert.False(t, tx.IsConfirmed)
	assert.Zero(t, tx.AmountMinor)
	assert.Equal(t, transaction.DirectionOut, tx.Direction)
	assert.Nil(t, tx.Merchant)
	assert.Equal(t, ev.Text, tx.DescriptionOrEmpty())
	assert.Equal(t, "EUR", tx.Currency)
	require.NotNil(t, tx.ExternalID)
	assert.Equal(t, transaction.NotificationExternalID(postedAt, 0, Satispay.Package, ev.Text), *tx.ExternalID)

	stored, err := f.repo.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsConfirmed)
}

func TestCapture_IgnoresTextWithoutMarker(t *testing.T) {
	f := newCaptureFixture(true)
	out, err := f.svc.Capture(context.Background(),
		Event{Package: PayPal.Package, Text: "Your security code is 123456", PostedAt: postedAt}, f.target)
	require.NoError(t, err)
	assert.True(t, out.Ignored)
	assert.Nil(t, out.Transaction)
	assert.Zero(t, f.repo.Len())
}
