package parser

import (
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// wiseRow binds a Wise statement row by header name. Column order and the
// optional columns vary between exports.
type wiseRow struct {
	ID          string `csv:"TransferWise ID"`
	Date        string `csv:"Date"`
	Amount      string `csv:"Amount"`
	Currency    string `csv:"Currency"`
	Description string `csv:"Description"`
	Reference   string `csv:"Payment Reference"`
	PayerName   string `csv:"Payer Name"`
	PayeeName   string `csv:"Payee Name"`
	Merchant    string `csv:"Merchant"`
}

func (w wiseRow) blank() bool {
	return blank(w.ID, w.Date, w.Amount, w.Currency, w.Description, w.Reference, w.PayerName, w.PayeeName, w.Merchant)
}

var wiseRequired = [][]string{{"TransferWise ID"}, {"Date"}, {"Amount"}, {"Currency"}}

// ImportB reads a Wise statement. The provider id becomes the external id.
func ImportB(text string, opts Options) *Result {
	opts = opts.withDefaults()
	label := sniffer.FormatB.Label()

	r := newReader(text, ',')
	um, err := gocsv.NewUnmarshaller(r, wiseRow{})
	if err != nil {
		return structuralFailure(label, "missing header row")
	}
	if err := um.RenormalizeHeaders(trimHeaders); err != nil {
		return structuralFailure(label, err.Error())
	}
	if missing := missingColumns(um.Headers, wiseRequired...); len(missing) > 0 {
		return structuralFailure(label, "missing required columns: "+strings.Join(missing, ", "))
	}

	res := newResult(label)
	res.Fingerprint = sniffer.Fingerprint(um.Headers)

	for {
		v, err := um.Read()
		if err != nil {
			if res.readFailure(err) {
				continue
			}
			break
		}
		row, ok := v.(wiseRow)
		if !ok || row.blank() {
			continue
		}
		res.record(rowLine(r), func() (transaction.ParsedTransaction, error) {
			return wiseTransaction(row, opts)
		})
	}
	return res
}

func wiseTransaction(row wiseRow, opts Options) (transaction.ParsedTransaction, error) {
	id := strings.TrimSpace(row.ID)
	if id == "" {
		return transaction.ParsedTransaction{}, errSkip
	}

	occurredAt, err := normalizer.ParseDate(row.Date, opts.Location, normalizer.LayoutDayDash, normalizer.LayoutISODate)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Date", err)
	}
	amount, err := normalizer.ParsePlainAmount(row.Amount)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Amount", err)
	}
	magnitude, dir, err := normalizer.SplitSigned(amount)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Amount", err)
	}

	description := strings.TrimSpace(row.Description)
	if description == "" {
		description = strings.TrimSpace(row.Reference)
	}

	return transaction.ParsedTransaction{
		OccurredAt:  occurredAt,
		AmountMinor: magnitude,
		Currency:    orDefault(row.Currency, opts.Currency),
		Direction:   dir,
		Merchant:    wiseMerchant(row, dir, description),
		Description: description,
		ExternalID:  id,
		EntrySource: transaction.SourceCSV,
	}, nil
}

// wiseMerchant prefers the card merchant, then the counterparty on the far
// side of the transfer, then the description.
func wiseMerchant(row wiseRow, dir transaction.Direction, description string) string {
	if m := strings.TrimSpace(row.Merchant); m != "" {
		return m
	}
	counterparty := row.PayeeName
	if dir == transaction.DirectionIn {
		counterparty = row.PayerName
	}
	if c := strings.TrimSpace(counterparty); c != "" {
		return c
	}
	return description
}

func trimHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = strings.TrimSpace(h)
	}
	return out
}
