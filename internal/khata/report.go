package khata

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"
)

// Report is the materialized two-table ledger report: a stock overview for
// the requested date and the most recent transactions. It is pure
// presentation over an already-loaded Dashboard; no locks are held while a
// report is rendered.
type Report struct {
	Date      string
	Stock     int64
	Made      int64
	Sold      int64
	NetChange int64
	SaleRate  int // percent of today's production sold, rounded

	Latest []Transaction // at most reportTxLimit, newest first
}

const reportTxLimit = 10

// BuildReport derives the report tables from a dashboard snapshot.
func BuildReport(d *Dashboard) *Report {
	r := &Report{
		Date:      d.Today.Date,
		Stock:     d.Summary.Stock,
		Made:      d.Today.Made,
		Sold:      d.Today.Sold,
		NetChange: d.Today.Made - d.Today.Sold,
	}
	if d.Today.Made > 0 {
		r.SaleRate = int(math.Round(float64(d.Today.Sold) / float64(d.Today.Made) * 100))
	}

	n := len(d.Transactions)
	if n > reportTxLimit {
		n = reportTxLimit
	}
	r.Latest = append(r.Latest, d.Transactions[:n]...)

	return r
}

// WriteXLSX renders the report as an Excel workbook with one sheet per table.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	const overview = "Overview"
	if err := f.SetSheetName("Sheet1", overview); err != nil {
		return fmt.Errorf("failed to name overview sheet: %w", err)
	}

	headers := []string{"Date", "Current Stock", "Made Today", "Sold Today", "Net Change", "Sale Rate"}
	values := []any{r.Date, r.Stock, r.Made, r.Sold, r.NetChange, fmt.Sprintf("%d%%", r.SaleRate)}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(overview, cell, h); err != nil {
			return err
		}
		cell, err = excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(overview, cell, values[i]); err != nil {
			return err
		}
	}

	const txSheet = "Transactions"
	if _, err := f.NewSheet(txSheet); err != nil {
		return fmt.Errorf("failed to add transactions sheet: %w", err)
	}
	for i, h := range []string{"Type", "Amount", "Date"} {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(txSheet, cell, h); err != nil {
			return err
		}
	}
	for row, tx := range r.Latest {
		for col, v := range []any{string(tx.Type), tx.Amount, tx.Timestamp} {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(txSheet, cell, v); err != nil {
				return err
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
