package pipeline

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"donorprep/internal"
	"donorprep/internal/schema"
	"donorprep/internal/util"
)

// NormalizeTable cleans the name columns and rewrites both date columns as
// YYYY-MM-DD, or the missing value when a date cannot be read.
func NormalizeTable(t internal.Table, s schema.Schema) internal.Table {
	out := t.Clone()

	nameIdx := columnIndexes(out, s.NameColumns)
	dateIdx := columnIndexes(out, []string{s.Columns.FillDate, s.Columns.BirthDate})

	for _, row := range out.Rows {
		for _, i := range nameIdx {
			row[i] = util.CleanName(row[i])
		}
		for _, i := range dateIdx {
			row[i] = normalizeDate(row[i])
		}
	}
	return out
}

const (
	minDateSerial = 3653
	maxDateSerial = 2958465
)

func normalizeDate(value string) string {
	if util.IsMissing(value) {
		return internal.MissingValue
	}
	if iso, ok := serialToISO(value); ok {
		return iso
	}
	if iso, ok := util.CleanDate(value); ok {
		return iso
	}
	return internal.MissingValue
}

// serialToISO converts a spreadsheet date serial such as "45123" or
// "45123.4375" to an ISO date. Serials before 1910 are rejected so that bare
// years are not read as day counts.
func serialToISO(value string) (string, bool) {
	v := strings.TrimSpace(value)
	if strings.ContainsAny(v, "-/") {
		return "", false
	}
	serial, err := strconv.ParseFloat(v, 64)
	if err != nil || serial < minDateSerial || serial > maxDateSerial {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return "", false
	}
	return t.Format("2006-01-02"), true
}

func columnIndexes(t internal.Table, names []string) []int {
	out := make([]int, 0, len(names))
	for _, name := range names {
		if i := t.Index(name); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}
