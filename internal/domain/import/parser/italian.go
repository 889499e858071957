package parser

import (
	"errors"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
)

// italianRow binds an Italian bank statement row. Banks disagree on the
// names of the credit and debit columns.
type italianRow struct {
	OperationDate string `csv:"Data Operazione"`
	ValueDate     string `csv:"Data Valuta"`
	Description   string `csv:"Descrizione,Descrizione Operazione,Causale"`
	Credit        string `csv:"Accrediti,Entrate"`
	Debit         string `csv:"Addebiti,Uscite"`
}

func (r italianRow) blank() bool {
	return blank(r.OperationDate, r.ValueDate, r.Description, r.Credit, r.Debit)
}

var italianRequired = [][]string{
	{"Data Operazione"},
	{"Accrediti", "Entrate"},
	{"Addebiti", "Uscite"},
}

var errNoAmount = errors.New("neither credit nor debit holds an amount")

// ImportC reads an Italian bank statement. The delimiter is taken from the
// header line and amounts use the European format.
func ImportC(text string, opts Options) *Result {
	opts = opts.withDefaults()
	label := sniffer.FormatC.Label()

	r := newReader(text, sniffer.DetectDelimiter(sniffer.FirstLine(text)))
	um, err := gocsv.NewUnmarshaller(r, italianRow{})
	if err != nil {
		return structuralFailure(label, "missing header row")
	}
	if err := um.RenormalizeHeaders(trimHeaders); err != nil {
		return structuralFailure(label, err.Error())
	}
	if missing := missingColumns(um.Headers, italianRequired...); len(missing) > 0 {
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
		row, ok := v.(italianRow)
		if !ok || row.blank() {
			continue
		}
		res.record(rowLine(r), func() (transaction.ParsedTransaction, error) {
			return italianTransaction(row, opts)
		})
	}
	return res
}

func italianTransaction(row italianRow, opts Options) (transaction.ParsedTransaction, error) {
	if strings.TrimSpace(row.OperationDate) == "" {
		return transaction.ParsedTransaction{}, errSkip
	}

	occurredAt, err := normalizer.ParseDate(row.OperationDate, opts.Location, normalizer.LayoutDaySlash, normalizer.LayoutDayDash)
	if err != nil {
		return transaction.ParsedTransaction{}, failColumn("Data Operazione", err)
	}

	magnitude, dir, err := creditDebit(row.Credit, row.Debit)
	if err != nil {
		return transaction.ParsedTransaction{}, err
	}

	raw := strings.TrimSpace(row.Description)
	desc := opts.Descriptions.Normalize(raw)

	return transaction.ParsedTransaction{
		OccurredAt:  occurredAt,
		AmountMinor: magnitude,
		Currency:    opts.Currency,
		Direction:   desc.Apply(dir),
		Merchant:    desc.Merchant,
		Description: raw,
		ExternalID:  transaction.CSVRowExternalID("C", occurredAt, signed(magnitude, dir), raw),
		EntrySource: transaction.SourceCSV,
	}, nil
}

// creditDebit resolves the two-column layout. A positive credit is IN; any
// non-empty debit is OUT regardless of the sign the bank wrote.
func creditDebit(credit, debit string) (int64, transaction.Direction, error) {
	if strings.TrimSpace(credit) != "" {
		amount, err := normalizer.ParseEuropeanAmount(credit)
		if err != nil {
			return 0, "", failColumn("Accrediti", err)
		}
		if amount.IsPositive() {
			minor, err := normalizer.ToMinorUnits(amount)
			if err != nil {
				return 0, "", failColumn("Accrediti", err)
			}
			return minor, transaction.DirectionIn, nil
		}
	}
	if strings.TrimSpace(debit) != "" {
		amount, err := normalizer.ParseEuropeanAmount(debit)
		if err != nil {
			return 0, "", failColumn("Addebiti", err)
		}
		minor, err := normalizer.ToMinorUnits(amount.Abs())
		if err != nil {
			return 0, "", failColumn("Addebiti", err)
		}
		return minor, transaction.DirectionOut, nil
	}
	return 0, "", failColumn("Addebiti", errNoAmount)
}
