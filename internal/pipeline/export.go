package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"donorprep/internal"
)

// CanonicalSheet is the sheet name of the canonical dataset workbook.
const CanonicalSheet = "dataset"

func WriteDatasetXLSX(ds internal.Dataset, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetName(sheet, CanonicalSheet); err != nil {
		return err
	}
	sheet = CanonicalSheet

	for i, h := range ds.Header() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}

	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return err
	}

	for i := range ds.Records {
		r := i + 2
		set := func(col int, value any) error {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			return f.SetCellValue(sheet, cell, value)
		}
		for c, value := range ds.Row(i) {
			if value == nil {
				continue
			}
			if err := set(c+1, value); err != nil {
				return err
			}
		}
	}

	for c, ref := range ds.Columns {
		if ref.Kind != internal.ColumnFillDate && ref.Kind != internal.ColumnBirthDate {
			continue
		}
		col, _ := excelize.ColumnNumberToName(c + 1)
		if err := f.SetColStyle(sheet, col, dateStyle); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
