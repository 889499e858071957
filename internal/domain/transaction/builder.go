package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// placeholderDescriptionLimit bounds the raw text kept on an unconfirmed
// placeholder.
const placeholderDescriptionLimit = 200

// Observed is a successfully extracted external event, such as a parsed
// payment notification.
type Observed struct {
	OccurredAt  time.Time
	AmountMinor int64
	Currency    string
	Direction   Direction
	Merchant    *string
	Description string
	ExternalID  string
	EntrySource EntrySource
}

// TransferRequest describes a movement between two sources, possibly across
// currencies. Rate is target units per source unit; nil or zero means unknown.
type TransferRequest struct {
	From           Target
	To             Target
	OccurredAt     time.Time
	AmountMinor    int64
	SourceCurrency string
	TargetCurrency string
	Rate           *decimal.Decimal
	Description    string
	EntrySource    EntrySource
}

// Builder maps parsed or observed events onto canonical records. Clock and
// NewID are overridable for tests.
type Builder struct {
	Clock func() time.Time
	NewID func() uuid.UUID
}

// NewBuilder returns a Builder using wall-clock time and random UUIDs.
func NewBuilder() *Builder {
	return &Builder{Clock: time.Now, NewID: uuid.New}
}

func (b *Builder) base(t Target, occurredAt time.Time) *Transaction {
	return &Transaction{
		ID:         b.NewID(),
		ProfileID:  t.ProfileID,
		WalletID:   t.WalletID,
		SourceID:   t.SourceID,
		OccurredAt: occurredAt,
		CreatedAt:  b.Clock(),
	}
}

// FromParsed builds a confirmed record from an importer row.
func (b *Builder) FromParsed(p ParsedTransaction, t Target) *Transaction {
	tx := b.base(t, p.OccurredAt)
	tx.AmountMinor = abs(p.AmountMinor)
	tx.Currency = p.Currency
	tx.Direction = p.Direction
	tx.Merchant = strPtr(p.Merchant)
	tx.Description = strPtr(p.Description)
	tx.EntrySource = p.EntrySource
	tx.ExternalID = strPtr(p.ExternalID)
	tx.IsConfirmed = true
	return tx
}

// FromObserved builds a confirmed record from a successfully parsed
// notification.
func (b *Builder) FromObserved(o Observed, t Target) *Transaction {
	tx := b.base(t, o.OccurredAt)
	tx.AmountMinor = abs(o.AmountMinor)
	tx.Currency = o.Currency
	tx.Direction = o.Direction
	tx.Merchant = o.Merchant
	tx.Description = strPtr(o.Description)
	tx.EntrySource = o.EntrySource
	tx.ExternalID = strPtr(o.ExternalID)
	tx.IsConfirmed = true
	return tx
}

// Placeholder records that an event happened when extraction failed. It is
// unconfirmed, zero-valued and still keyed so re-delivery does not create a
// second placeholder.
func (b *Builder) Placeholder(source EntrySource, rawText, externalID, currency string, postedAt time.Time, t Target) *Transaction {
	tx := b.base(t, postedAt)
	tx.AmountMinor = 0
	tx.Currency = currency
	tx.Direction = DirectionOut
	tx.Description = strPtr(runePrefix(rawText, placeholderDescriptionLimit))
	tx.EntrySource = source
	tx.ExternalID = strPtr(externalID)
	tx.IsConfirmed = false
	return tx
}

// Manual builds a user-entered record. Manual entries never carry an
// external id and are never deduplicated.
func (b *Builder) Manual(t Target, occurredAt time.Time, amountMinor int64, currency string, dir Direction, merchant, description string, categoryID *uuid.UUID, tags []uuid.UUID) *Transaction {
	tx := b.base(t, occurredAt)
	tx.AmountMinor = abs(amountMinor)
	tx.Currency = currency
	tx.Direction = dir
	tx.Merchant = strPtr(merchant)
	tx.Description = strPtr(description)
	tx.CategoryID = categoryID
	tx.TagIDs = tags
	tx.EntrySource = SourceManual
	tx.IsConfirmed = true
	return tx
}

// TransferLegs returns the source-side and destination-side rows of a
// transfer, sharing one group id. Across currencies the destination amount is
// source × rate rounded to the nearest minor unit; with a zero or missing rate
// the source magnitude is copied unchanged.
func (b *Builder) TransferLegs(req TransferRequest) (from, to *Transaction) {
	group := b.NewID()
	source := req.EntrySource
	if source == "" {
		source = SourceManual
	}

	from = b.base(req.From, req.OccurredAt)
	from.AmountMinor = abs(req.AmountMinor)
	from.Currency = req.SourceCurrency
	from.Direction = DirectionTransfer
	from.Description = strPtr(req.Description)
	from.EntrySource = source
	from.IsConfirmed = true
	from.TransferGroupID = &group

	to = b.base(req.To, req.OccurredAt)
	to.AmountMinor = TargetLegAmount(from.AmountMinor, req.SourceCurrency, req.TargetCurrency, req.Rate)
	to.Currency = req.TargetCurrency
	if to.Currency == "" {
		to.Currency = req.SourceCurrency
	}
	to.Direction = DirectionTransfer
	to.Description = strPtr(req.Description)
	to.EntrySource = source
	to.IsConfirmed = true
	to.TransferGroupID = &group

	return from, to
}

// TargetLegAmount computes the destination magnitude of a transfer.
func TargetLegAmount(amountMinor int64, sourceCurrency, targetCurrency string, rate *decimal.Decimal) int64 {
	amountMinor = abs(amountMinor)
	if targetCurrency == "" || targetCurrency == sourceCurrency {
		return amountMinor
	}
	if rate == nil || rate.IsZero() {
		return amountMinor
	}
	return money.New(amountMinor, sourceCurrency).Convert(targetCurrency, *rate).Abs().Amount()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
