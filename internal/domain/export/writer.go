package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"github.com/xuri/excelize/v2"
)

// ErrNoRows is returned when an export would produce an empty file.
// Zero-amount filtering upstream can legitimately drain a document.
var ErrNoRows = errors.New("export: no rows to write")

// WriteCSV writes rows as a semicolon-delimited file with no header
// line, the layout the accounting import expects.
func WriteCSV(rows []Row, path string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := gocsv.MarshalCSVWithoutHeaders(&rows, gocsv.NewSafeCSVWriter(w)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteXLSX writes the same rows as a single-sheet spreadsheet, for
// users whose bookkeeping software prefers Excel input.
func WriteXLSX(rows []Row, path string) error {
	if len(rows) == 0 {
		return ErrNoRows
	}
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cells := []string{row.Date, row.Debit, row.Credit, row.Amount, row.Description, row.Division}
		for j, v := range cells {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return fmt.Errorf("cell coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
