package pipeline

import (
	"strings"

	"donorprep/internal"
	"donorprep/internal/schema"
)

type DetectResult struct {
	Sheet  string
	Layout internal.SheetLayout
	Score  float64
	Reason string
}

// positionalLayouts is the historical sheet order of the survey workbook.
var positionalLayouts = map[int]internal.SheetLayout{
	0: internal.LayoutStandard,
	1: internal.LayoutSexCode,
	2: internal.LayoutUnderscore,
}

var mergeOrder = []internal.SheetLayout{
	internal.LayoutStandard,
	internal.LayoutUnderscore,
	internal.LayoutSexCode,
}

// DetectSheetLayout scores a sheet header against each layout vocabulary and
// returns the best one. A score below 0.5 means the header is ambiguous.
func DetectSheetLayout(sheet internal.Sheet, s schema.Schema) DetectResult {
	scores := map[internal.SheetLayout]float64{}

	headers := make([]string, 0, len(sheet.Columns))
	for _, c := range sheet.Columns {
		headers = append(headers, strings.TrimSpace(c))
	}

	underscored := 0
	for _, h := range headers {
		if strings.Contains(h, "_") {
			underscored++
		}
	}
	if len(headers) > 0 {
		share := float64(underscored) / float64(len(headers))
		if share >= 0.3 {
			scores[internal.LayoutUnderscore] += 0.6
		}
		scores[internal.LayoutUnderscore] += share * 0.4
	}

	if contains(headers, s.SexCode.Column) {
		scores[internal.LayoutSexCode] += 0.4
		if codedShare(sheet, s) >= 0.5 {
			scores[internal.LayoutSexCode] += 0.2
		}
	}
	for from := range s.SexCode.Renames {
		if from != s.SexCode.Column && contains(headers, from) {
			scores[internal.LayoutSexCode] += 0.3
		}
	}

	if contains(headers, s.Columns.Genre) {
		scores[internal.LayoutStandard] += 0.3
	}
	if contains(headers, s.Columns.FillDate) {
		scores[internal.LayoutStandard] += 0.3
	}
	if contains(headers, s.Criteria.Start) && contains(headers, s.Criteria.End) {
		scores[internal.LayoutStandard] += 0.2
	}
	if scores[internal.LayoutUnderscore] < 0.3 {
		scores[internal.LayoutStandard] += 0.2
	}

	best := DetectResult{Sheet: sheet.Name, Layout: positionalLayouts[sheet.Index], Reason: "positional"}
	for _, layout := range mergeOrder {
		score := scores[layout]
		if score > 1 {
			score = 1
		}
		if score > best.Score {
			best.Layout = layout
			best.Score = score
			best.Reason = "header_vocabulary"
		}
	}
	return best
}

// AssignLayouts picks the layout of each of the first three sheets. When the
// header vocabulary does not yield one sheet per layout, the positional order
// is used instead.
func AssignLayouts(sheets []internal.Sheet, s schema.Schema) []DetectResult {
	n := MinSheets
	if len(sheets) < n {
		n = len(sheets)
	}

	detected := make([]DetectResult, 0, n)
	seen := map[internal.SheetLayout]struct{}{}
	confident := true
	for _, sheet := range sheets[:n] {
		res := DetectSheetLayout(sheet, s)
		if res.Score < 0.5 {
			confident = false
		}
		seen[res.Layout] = struct{}{}
		detected = append(detected, res)
	}
	if confident && len(seen) == n {
		return detected
	}

	fallback := make([]DetectResult, 0, n)
	for _, sheet := range sheets[:n] {
		fallback = append(fallback, DetectResult{
			Sheet:  sheet.Name,
			Layout: positionalLayouts[sheet.Index],
			Reason: "positional",
		})
	}
	return fallback
}

func codedShare(sheet internal.Sheet, s schema.Schema) float64 {
	idx := -1
	for i, c := range sheet.Columns {
		if strings.TrimSpace(c) == s.SexCode.Column {
			idx = i
			break
		}
	}
	if idx < 0 || len(sheet.Rows) == 0 {
		return 0
	}
	coded, known := 0, 0
	for _, row := range sheet.Rows {
		v := strings.TrimSpace(row[idx])
		if v == internal.MissingValue {
			continue
		}
		known++
		if _, ok := s.SexCode.Codes[v]; ok {
			coded++
		}
	}
	if known == 0 {
		return 0
	}
	return float64(coded) / float64(known)
}

func contains(values []string, want string) bool {
	if want == "" {
		return false
	}
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
