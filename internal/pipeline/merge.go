package pipeline

import (
	"fmt"
	"strings"

	"donorprep/internal"
	"donorprep/internal/schema"
)

// Harmonize rewrites a sheet header (and, for the sex-code layout, the coded
// column) into the canonical vocabulary. The input sheet is not modified.
func Harmonize(sheet internal.Sheet, layout internal.SheetLayout, s schema.Schema) internal.Table {
	out := internal.Table{
		Columns: make([]string, 0, len(sheet.Columns)),
		Rows:    make([][]string, 0, len(sheet.Rows)),
	}
	for _, c := range sheet.Columns {
		name := strings.TrimSpace(c)
		if layout == internal.LayoutUnderscore {
			name = strings.TrimSpace(strings.ReplaceAll(c, "_", " "))
		}
		out.Columns = append(out.Columns, name)
	}

	codeIdx := -1
	if layout == internal.LayoutSexCode {
		for i, name := range out.Columns {
			if name == s.SexCode.Column {
				codeIdx = i
				break
			}
		}
		for i, name := range out.Columns {
			if to, ok := s.SexCode.Renames[name]; ok {
				out.Columns[i] = to
			}
		}
	}

	for _, row := range sheet.Rows {
		cells := append([]string(nil), row...)
		if codeIdx >= 0 {
			label, ok := s.SexCode.Codes[strings.TrimSpace(cells[codeIdx])]
			if !ok {
				label = internal.MissingValue
			}
			cells[codeIdx] = label
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// Concat stacks tables in order. The header is the ordered union of the
// input headers; cells a table does not carry are set to the missing value.
func Concat(tables ...internal.Table) internal.Table {
	out := internal.Table{}
	position := map[string]int{}
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := position[c]; ok {
				continue
			}
			position[c] = len(out.Columns)
			out.Columns = append(out.Columns, c)
		}
	}

	for _, t := range tables {
		for _, row := range t.Rows {
			cells := make([]string, len(out.Columns))
			for i := range cells {
				cells[i] = internal.MissingValue
			}
			for i, c := range t.Columns {
				if i < len(row) {
					cells[position[c]] = row[i]
				}
			}
			out.Rows = append(out.Rows, cells)
		}
	}
	return out
}

// MergeSheets harmonizes the first three sheets and concatenates them in
// standard, underscore, sex-code order.
func MergeSheets(sheets []internal.Sheet, s schema.Schema) (internal.Table, []DetectResult, error) {
	if len(sheets) < MinSheets {
		return internal.Table{}, nil, fmt.Errorf("%w: got %d, need %d", ErrTooFewSheets, len(sheets), MinSheets)
	}

	layouts := AssignLayouts(sheets, s)
	tables := make([]internal.Table, 0, len(layouts))
	for _, layout := range mergeOrder {
		for i, res := range layouts {
			if res.Layout == layout {
				tables = append(tables, Harmonize(sheets[i], layout, s))
			}
		}
	}
	return Concat(tables...), layouts, nil
}
