package internal

import "time"

const (
	// MissingValue stands in for an empty or absent spreadsheet cell.
	MissingValue = "nan"
	// NoAnswer is the normalized form of "nothing to report" answers.
	NoAnswer = "r a s"
)

type SheetLayout string

const (
	LayoutStandard   SheetLayout = "standard"
	LayoutUnderscore SheetLayout = "underscore"
	LayoutSexCode    SheetLayout = "sexcode"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

// Sheet is one worksheet of the raw survey workbook. Rows are padded to the
// header width and never mutated after extraction.
type Sheet struct {
	Name    string
	Index   int
	Columns []string
	Rows    [][]string
}

// Table is a text-only row set. Pipeline stages return new tables instead
// of mutating their input.
type Table struct {
	Columns []string
	Rows    [][]string
}

func (t Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Cell returns the value at (row, column), or MissingValue when the column
// is absent.
func (t Table) Cell(row int, column string) string {
	idx := t.Index(column)
	if idx < 0 || idx >= len(t.Rows[row]) {
		return MissingValue
	}
	return t.Rows[row][idx]
}

type CanonicalRecord struct {
	Residence  *string
	Age        *int
	Genre      string
	Profession string
	Religion   string
	FilledAt   *time.Time
	BirthDate  *time.Time
	Year       *int
	Month      *int
	Weight     *int
	Height     *int
	Retention  int
	// EligibilityHead is the digitized category column opening the criterion
	// range. It is not a criterion itself.
	EligibilityHead int
	Criteria        []int
	Eligible        bool
	Sentiment       Sentiment
	// Text holds every passthrough column keyed by its merged header.
	Text map[string]string
}

type ColumnKind int

const (
	ColumnText ColumnKind = iota
	ColumnResidence
	ColumnAge
	ColumnFillDate
	ColumnBirthDate
	ColumnYear
	ColumnMonth
	ColumnWeight
	ColumnHeight
	ColumnRetention
	ColumnEligibilityHead
	ColumnCriterion
	ColumnEligible
	ColumnSentiment
)

// ColumnRef binds an output header position to the record field it renders.
type ColumnRef struct {
	Name string
	Kind ColumnKind
	// Key is the merged header for text columns, Criterion the position in
	// CanonicalRecord.Criteria for criterion columns.
	Key       string
	Criterion int
}

type Dataset struct {
	Columns  []ColumnRef
	Criteria []string
	Records  []CanonicalRecord
}

func (d Dataset) Header() []string {
	out := make([]string, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, c.Name)
	}
	return out
}

// Row renders a record in header order. Unknown values are nil.
func (d Dataset) Row(i int) []any {
	rec := d.Records[i]
	out := make([]any, 0, len(d.Columns))
	for _, c := range d.Columns {
		out = append(out, rec.value(c))
	}
	return out
}

func (r CanonicalRecord) value(c ColumnRef) any {
	switch c.Kind {
	case ColumnResidence:
		return derefString(r.Residence)
	case ColumnAge:
		return derefInt(r.Age)
	case ColumnFillDate:
		return derefTime(r.FilledAt)
	case ColumnBirthDate:
		return derefTime(r.BirthDate)
	case ColumnYear:
		return derefInt(r.Year)
	case ColumnMonth:
		return derefInt(r.Month)
	case ColumnWeight:
		return derefInt(r.Weight)
	case ColumnHeight:
		return derefInt(r.Height)
	case ColumnRetention:
		return r.Retention
	case ColumnEligibilityHead:
		return r.EligibilityHead
	case ColumnCriterion:
		if c.Criterion < len(r.Criteria) {
			return r.Criteria[c.Criterion]
		}
		return nil
	case ColumnEligible:
		return r.Eligible
	case ColumnSentiment:
		return string(r.Sentiment)
	default:
		v, ok := r.Text[c.Key]
		if !ok || v == MissingValue {
			return nil
		}
		return v
	}
}

func derefString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func derefTime(v *time.Time) any {
	if v == nil {
		return nil
	}
	return *v
}

type RunRow struct {
	ID         int
	TraceID    string
	Status     string
	DatasetOut string
	GeoOut     string
	Timings    map[string]float64
	Counts     map[string]int
	Error      string
	CreatedAt  string
}
