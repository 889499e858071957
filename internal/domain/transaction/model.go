// Package transaction holds the canonical ledger record, the deduplication key
// scheme, the record builder and the storage adapters.
package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Direction is the polarity of a transaction.
type Direction string

const (
	DirectionIn       Direction = "IN"
	DirectionOut      Direction = "OUT"
	DirectionTransfer Direction = "TRANSFER"
)

// EntrySource tags the provenance of a transaction. External ids are unique
// per entry source.
type EntrySource string

const (
	SourceManual     EntrySource = "MANUAL"
	SourceCSV        EntrySource = "CSV"
	SourceQuickEntry EntrySource = "QUICK_ENTRY"

	notificationPrefix = "NOTIFICATION_"
)

// NotificationSource returns the entry source tag for a payment app, e.g.
// NOTIFICATION_PAYPAL.
func NotificationSource(app string) EntrySource {
	return EntrySource(notificationPrefix + strings.ToUpper(strings.TrimSpace(app)))
}

// IsNotification reports whether the tag came from notification capture.
func (s EntrySource) IsNotification() bool {
	return strings.HasPrefix(string(s), notificationPrefix)
}

var (
	ErrNotFound            = errors.New("transaction not found")
	ErrDuplicateExternalID = errors.New("duplicate external id for entry source")
	ErrInvalidTransaction  = errors.New("invalid transaction")
)

// ParsedTransaction is the transient output of importers and parsers. It is
// never stored directly; Builder turns it into a Transaction.
type ParsedTransaction struct {
	OccurredAt  time.Time
	AmountMinor int64 // magnitude, never negative
	Currency    string
	Direction   Direction
	Merchant    string
	Description string
	ExternalID  string
	EntrySource EntrySource
}

// Transaction is the canonical persisted record.
type Transaction struct {
	ID              uuid.UUID
	ProfileID       uuid.UUID
	WalletID        uuid.UUID
	SourceID        uuid.UUID
	OccurredAt      time.Time
	AmountMinor     int64
	Currency        string
	Direction       Direction
	Merchant        *string
	Description     *string
	CategoryID      *uuid.UUID
	TagIDs          []uuid.UUID
	EntrySource     EntrySource
	ExternalID      *string
	IsConfirmed     bool
	TransferGroupID *uuid.UUID
	CreatedAt       time.Time
}

// Target is the resolved {profile, wallet, source} a record is written to.
type Target struct {
	ProfileID uuid.UUID
	WalletID  uuid.UUID
	SourceID  uuid.UUID
}

// Validate checks the structural invariants of a record before storage.
func (t *Transaction) Validate() error {
	switch {
	case t == nil:
		return ErrInvalidTransaction
	case t.AmountMinor < 0:
		return errors.Join(ErrInvalidTransaction, errors.New("amount must be a non-negative magnitude"))
	case t.Currency == "":
		return errors.Join(ErrInvalidTransaction, errors.New("currency is required"))
	}
	switch t.Direction {
	case DirectionIn, DirectionOut, DirectionTransfer:
	default:
		return errors.Join(ErrInvalidTransaction, errors.New("unknown direction "+string(t.Direction)))
	}
	if t.ExternalID != nil && *t.ExternalID == "" {
		return errors.Join(ErrInvalidTransaction, errors.New("external id must be nil or non-empty"))
	}
	return nil
}

// MerchantOrEmpty dereferences Merchant.
func (t *Transaction) MerchantOrEmpty() string {
	if t.Merchant == nil {
		return ""
	}
	return *t.Merchant
}

// DescriptionOrEmpty dereferences Description.
func (t *Transaction) DescriptionOrEmpty() string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// EncodeTagIDs renders tag ids as the comma-delimited column value.
func EncodeTagIDs(ids []uuid.UUID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}

// DecodeTagIDs parses the comma-delimited column value, preserving order and
// dropping malformed entries.
func DecodeTagIDs(raw string) []uuid.UUID {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		id, err := uuid.Parse(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
