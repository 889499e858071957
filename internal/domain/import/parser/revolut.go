package parser

import (
	"fmt"
	"strings"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// Revolut column positions.
const (
	revType = iota
	revProduct
	revStartedDate
	revCompletedDate
	revDescription
	revAmount
	revFee
	revCurrency
	revState

	revMinColumns = revState + 1
)

const revCompleted = "COMPLETED"

// ImportA reads a Revolut account statement. Only completed rows are kept.
func ImportA(text string, opts Options) *Result {
	opts = opts.withDefaults()
	label := sniffer.FormatA.Label()

	r := newReader(text, ',')
	header, err := r.Read()
	if err != nil {
		return structuralFailure(label, "missing header row")
	}
	if len(header) < revMinColumns {
		return structuralFailure(label, fmt.Sprintf("expected at least %d columns, got %d", revMinColumns, len(header)))
	}

	res := newResult(label)
	res.Fingerprint = sniffer.Fingerprint(header)

	for {
		fields, err := r.Read()
		if err != nil {
			if res.readFailure(err) {
				continue
			}
			break
		}
		if blank(fields...) {
			continue
		}
		res.record(rowLine(r), func() (transaction.ParsedTransaction, error) {
			return revolutRow(fields, opts)
		})
	}
	return res
}

func revolutRow(fields []string, opts Options) (transaction.ParsedTransaction, error) {
	if len(fields) < revMinColumns {
		return transaction.ParsedTransaction{}, failColumn("State", fmt.Errorf("expected %d columns, got %d", revMinColumns, len(fields)))
	}
	if !strings.EqualFold(strings.TrimSpace(fields[revState]), revCompleted) {
		return transaction.ParsedTransaction{}, errSkip
	}
	started := strings.TrimSpace(fields[revStartedDate])
	if started == "" {
		return transaction.ParsedTransaction{}, errSkip
	}

	occurredAt, err := normalizer.ParseDate(started, opts.Location, normalizer.LayoutISODateTime, normalizer.LayoutISODate)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Started Date", err)
	}
	amount, err := normalizer.ParsePlainAmount(fields[revAmount])
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Amount", err)
	}
	magnitude, dir, err := normalizer.SplitSigned(amount)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Amount", err)
	}

	description := strings.TrimSpace(fields[revDescription])

	return transaction.ParsedTransaction{
		OccurredAt:  occurredAt,
		AmountMinor: magnitude,
		Currency:    orDefault(fields[revCurrency], opts.Currency),
		Direction:   dir,
		Merchant:    description,
		Description: description,
		ExternalID:  transaction.CSVRowExternalID("A", occurredAt, signed(magnitude, dir), description),
		EntrySource: transaction.SourceCSV,
	}, nil
}
