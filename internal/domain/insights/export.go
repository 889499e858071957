package insights

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/FACorreiaa/pocket-ledger/internal/domain/transaction"
	"github.com/FACorreiaa/pocket-ledger/pkg/money"
)

const (
	ledgerSheet    = "Ledger"
	breakdownSheet = "Categories"
)

var ledgerHeader = []any{"Date", "Time", "Merchant", "Description", "Category", "Source", "Wallet", "Amount", "Currency", "Display", "Status"}

// ExportLedger writes the grouped ledger as an xlsx workbook. Each day starts
// with a bold row carrying the day's expense total.
func ExportLedger(groups []DayGroup, w io.Writer) error {
	return ExportWorkbook(groups, nil, w)
}

// ExportWorkbook is ExportLedger plus a second sheet with the category
// breakdown when one is given.
func ExportWorkbook(groups []DayGroup, breakdown []CategoryShare, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}

	row := 1
	if err := setRow(f, ledgerSheet, row, ledgerHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(ledgerSheet, row, row, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for _, g := range groups {
		row++
		currency := dayCurrency(g)
		if err := setRow(f, ledgerSheet, row, []any{
			g.Date.Format(time.DateOnly), "", "", "", "", "", "",
			money.New(g.DailyTotal, currency).ToDecimal().InexactFloat64(), currency,
			"-" + money.New(g.DailyTotal, currency).Display(), "",
		}); err != nil {
			return err
		}
		if err := f.SetRowStyle(ledgerSheet, row, row, bold); err != nil {
			return fmt.Errorf("style day row: %w", err)
		}

		for _, e := range g.Entries {
			row++
			tx := e.Transaction
			if err := setRow(f, ledgerSheet, row, []any{
				tx.OccurredAt.In(g.Date.Location()).Format(time.DateOnly),
				tx.OccurredAt.In(g.Date.Location()).Format("15:04"),
				tx.MerchantOrEmpty(),
				tx.DescriptionOrEmpty(),
				e.Category,
				e.Source,
				e.Wallet,
				signedMajor(tx),
				tx.Currency,
				e.DisplayAmount,
				status(tx),
			}); err != nil {
				return err
			}
		}
	}
	if err := f.SetColWidth(ledgerSheet, "C", "D", 32); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	if len(breakdown) > 0 {
		if _, err := f.NewSheet(breakdownSheet); err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if err := setRow(f, breakdownSheet, 1, []any{"Category", "Amount (minor)", "Percentage"}); err != nil {
			return err
		}
		for i, s := range breakdown {
			if err := setRow(f, breakdownSheet, i+2, []any{s.Name, s.AmountMinor, s.Percentage}); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func dayCurrency(g DayGroup) string {
	for _, e := range g.Entries {
		if e.Transaction.Currency != "" {
			return e.Transaction.Currency
		}
	}
	return money.EUR
}

func signedMajor(tx *transaction.Transaction) float64 {
	v := money.New(tx.AmountMinor, tx.Currency).ToDecimal().InexactFloat64()
	if tx.Direction == transaction.DirectionOut {
		return -v
	}
	return v
}

func status(tx *transaction.Transaction) string {
	if tx.IsConfirmed {
		return "confirmed"
	}
	return "pending"
}
