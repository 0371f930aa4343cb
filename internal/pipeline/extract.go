package pipeline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"donorprep/internal"
)

// MinSheets is the number of survey sheets the raw workbook must carry.
const MinSheets = 3

var ErrTooFewSheets = errors.New("workbook has too few sheets")

// ReadWorkbook loads every sheet of the raw survey workbook. Cells are read
// as raw values so that date serials survive for later conversion.
func ReadWorkbook(path string) ([]internal.Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close()

	names := f.GetSheetList()
	if len(names) < MinSheets {
		return nil, fmt.Errorf("%w: %s has %d, need %d", ErrTooFewSheets, path, len(names), MinSheets)
	}

	out := make([]internal.Sheet, 0, len(names))
	for i, name := range names {
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		out = append(out, toSheet(name, i, rows))
	}
	return out, nil
}

func toSheet(name string, index int, rows [][]string) internal.Sheet {
	sheet := internal.Sheet{Name: name, Index: index}
	if len(rows) == 0 {
		return sheet
	}

	sheet.Columns = headerNames(rows[0])
	width := len(sheet.Columns)
	for _, row := range rows[1:] {
		if isBlankRow(row) {
			continue
		}
		if len(row) > width {
			for i := width; i < len(row); i++ {
				sheet.Columns = append(sheet.Columns, "Unnamed: "+strconv.Itoa(i))
			}
			width = len(row)
			for j := range sheet.Rows {
				sheet.Rows[j] = padRow(sheet.Rows[j], width)
			}
		}
		sheet.Rows = append(sheet.Rows, padRow(normalizeCells(row), width))
	}
	return sheet
}

// headerNames fills blank headers with positional names and suffixes
// duplicates with ".1", ".2" and so on.
func headerNames(row []string) []string {
	out := make([]string, 0, len(row))
	seen := map[string]int{}
	for i, cell := range row {
		name := cell
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out = append(out, name)
	}
	return out
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if strings.TrimSpace(c) == "" {
			out = append(out, internal.MissingValue)
			continue
		}
		out = append(out, c)
	}
	return out
}

func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, internal.MissingValue)
	}
	return row
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
