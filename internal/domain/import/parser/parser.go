// Package parser converts statement text in each supported dialect into
// parsed transactions. A bad row never aborts an import: it is counted and
// reported while the remaining rows are still processed.
package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/normalizer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

// RowError describes why a row, or the header, could not be imported.
type RowError struct {
	Row     int
	Column  string
	Message string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d, column %s: %s", e.Row, e.Column, e.Message)
}

// Result is the outcome of one import. SkippedCount counts expected
// omissions (pending rows, rows without an id); ErrorCount counts rows that
// failed to parse.
type Result struct {
	Transactions []transaction.ParsedTransaction
	SkippedCount int
	ErrorCount   int
	FormatLabel  string
	Errors       []RowError
	// Fingerprint identifies the header layout in logs.
	Fingerprint string
}

// Options tune how rows are interpreted.
type Options struct {
	// Location is used for statement dates without a zone. Defaults to UTC.
	Location *time.Location
	// Currency is used when a row carries none. Defaults to EUR.
	Currency string
	// Descriptions normalizes Italian bank descriptions. Defaults to the
	// known prefix table.
	Descriptions *normalizer.DescriptionNormalizer
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.Currency == "" {
		o.Currency = money.EUR
	}
	if o.Descriptions == nil {
		o.Descriptions = normalizer.NewDescriptionNormalizer()
	}
	return o
}

// Import dispatches text to the importer for format.
func Import(format sniffer.Format, text string, opts Options) *Result {
	switch format {
	case sniffer.FormatA:
		return ImportA(text, opts)
	case sniffer.FormatB:
		return ImportB(text, opts)
	case sniffer.FormatC:
		return ImportC(text, opts)
	}
	return structuralFailure(format.Label(), "unrecognised statement format")
}

// errSkip marks an expected omission.
var errSkip = errors.New("skip row")

// columnError is a row failure attributed to one column.
type columnError struct {
	column string
	err    error
}

func (e *columnError) Error() string { return e.err.Error() }

func failColumn(column string, err error) error {
	return &columnError{column: column, err: err}
}

func newResult(label string) *Result {
	return &Result{
		Transactions: make([]transaction.ParsedTransaction, 0),
		Errors:       make([]RowError, 0),
		FormatLabel:  label,
	}
}

func structuralFailure(label, message string) *Result {
	res := newResult(label)
	res.ErrorCount = 1
	res.Errors = append(res.Errors, RowError{Row: 1, Column: "header", Message: message})
	return res
}

func newReader(text string, delimiter rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(text, "\uFEFF")))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

// record applies the outcome of one row handler to res. Panics inside the
// handler are recovered and counted as row errors.
func (res *Result) record(row int, handle func() (transaction.ParsedTransaction, error)) {
	var (
		tx  transaction.ParsedTransaction
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v", p)
			}
		}()
		tx, err = handle()
	}()

	switch {
	case err == nil:
		res.Transactions = append(res.Transactions, tx)
	case errors.Is(err, errSkip):
		res.SkippedCount++
	default:
		res.fail(row, err)
	}
}

func (res *Result) fail(row int, err error) {
	column := ""
	var ce *columnError
	if errors.As(err, &ce) {
		column = ce.column
	}
	res.ErrorCount++
	res.Errors = append(res.Errors, RowError{Row: row, Column: column, Message: err.Error()})
}

// readFailure handles an error from the CSV reader itself. It reports
// whether reading can continue.
func (res *Result) readFailure(err error) bool {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		res.fail(pe.StartLine, err)
		return true
	}
	if !errors.Is(err, io.EOF) {
		res.fail(0, err)
	}
	return false
}

func rowLine(r *csv.Reader) int {
	line, _ := r.FieldPos(0)
	return line
}

func blank(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func signed(magnitude int64, dir transaction.Direction) int64 {
	if dir == transaction.DirectionOut {
		return -magnitude
	}
	return magnitude
}

func missingColumns(headers []string, required ...[]string) []string {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[strings.TrimSpace(h)] = struct{}{}
	}
	var missing []string
	for _, alternatives := range required {
		found := false
		for _, name := range alternatives {
			if _, ok := present[name]; ok {
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, strings.Join(alternatives, "/"))
		}
	}
	return missing
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return strings.ToUpper(v)
	}
	return def
}
