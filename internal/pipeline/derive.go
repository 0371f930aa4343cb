package pipeline

import (
	"strconv"
	"strings"
	"time"

	"donorprep/internal"
	"donorprep/internal/config"
	"donorprep/internal/geo"
	"donorprep/internal/schema"
	"donorprep/internal/sentiment"
	"donorprep/internal/util"
)

type DeriveOptions struct {
	AgeMode string
	Now     time.Time
}

// Derive types a normalized table into canonical records: ages, calendar
// fields, anthropometrics, retention and the criterion indicators with the
// aggregate eligibility flag.
func Derive(t internal.Table, s schema.Schema, opts DeriveOptions) (internal.Dataset, error) {
	crit, err := s.Locate(t.Columns)
	if err != nil {
		return internal.Dataset{}, err
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	ds := internal.Dataset{Columns: make([]internal.ColumnRef, 0, len(t.Columns)+4)}
	hasAge := false
	for i, name := range t.Columns {
		ref := internal.ColumnRef{Name: schema.CriterionName(name), Kind: kindOf(name, s), Key: name}
		switch {
		case i == crit.Start:
			ref.Kind = internal.ColumnEligibilityHead
		case crit.Contains(i):
			ref.Kind = internal.ColumnCriterion
			ref.Criterion = i - crit.Start - 1
			ds.Criteria = append(ds.Criteria, ref.Name)
		}
		if ref.Kind == internal.ColumnAge {
			hasAge = true
		}
		ds.Columns = append(ds.Columns, ref)
	}
	if !hasAge {
		ds.Columns = append(ds.Columns, internal.ColumnRef{Name: s.Columns.Age, Kind: internal.ColumnAge})
	}
	ds.Columns = append(ds.Columns,
		internal.ColumnRef{Name: s.Derived.Year, Kind: internal.ColumnYear},
		internal.ColumnRef{Name: s.Derived.Month, Kind: internal.ColumnMonth},
		internal.ColumnRef{Name: s.Derived.Eligible, Kind: internal.ColumnEligible},
	)

	ds.Records = make([]internal.CanonicalRecord, 0, len(t.Rows))
	for r := range t.Rows {
		ds.Records = append(ds.Records, deriveRecord(t, r, crit, s, opts))
	}
	return ds, nil
}

func deriveRecord(t internal.Table, r int, crit schema.CriterionRange, s schema.Schema, opts DeriveOptions) internal.CanonicalRecord {
	row := t.Rows[r]
	rec := internal.CanonicalRecord{
		Genre:      knownText(t.Cell(r, s.Columns.Genre)),
		Profession: knownText(t.Cell(r, s.Columns.Profession)),
		Religion:   knownText(t.Cell(r, s.Columns.Religion)),
		Text:       map[string]string{},
	}

	if residence := t.Cell(r, s.Columns.Residence); !util.IsMissing(residence) {
		rec.Residence = util.StringPtr(residence)
	}

	rec.FilledAt, _ = util.ParseISODate(t.Cell(r, s.Columns.FillDate))
	rec.BirthDate, _ = util.ParseISODate(t.Cell(r, s.Columns.BirthDate))
	rec.Age = deriveAge(t.Cell(r, s.Columns.Age), rec.BirthDate, opts)
	if rec.FilledAt != nil {
		rec.Year = util.IntPtr(rec.FilledAt.Year())
		rec.Month = util.IntPtr(int(rec.FilledAt.Month()))
	}

	rec.Weight = positiveDigits(t.Cell(r, s.Columns.Weight))
	rec.Height = positiveDigits(t.Cell(r, s.Columns.Height))

	if strings.ToLower(strings.TrimSpace(t.Cell(r, s.Columns.Retention))) == strings.ToLower(s.RetentionYes) {
		rec.Retention = 1
	}

	rec.Criteria = make([]int, 0, crit.End-crit.Start-1)
	sum := 0
	for i := crit.Start; i < crit.End; i++ {
		v := 0
		if s.IsCriterionPositive(row[i]) {
			v = 1
		}
		if i == crit.Start {
			rec.EligibilityHead = v
			continue
		}
		rec.Criteria = append(rec.Criteria, v)
		sum += v
	}
	rec.Eligible = sum == 0

	for i, name := range t.Columns {
		if kindOf(name, s) == internal.ColumnText && !crit.Contains(i) {
			rec.Text[name] = row[i]
		}
	}
	return rec
}

// deriveAge prefers an explicit positive age and falls back to the age
// computed from the birth date. AgeModeSum adds both. Zero is unknown.
func deriveAge(explicit string, birth *time.Time, opts DeriveOptions) *int {
	given := 0
	if v := positiveDigits(explicit); v != nil {
		given = *v
	}
	computed := 0
	if birth != nil {
		computed = util.CalculateAge(*birth, opts.Now)
	}

	age := given
	switch {
	case opts.AgeMode == config.AgeModeSum:
		age = given + computed
	case given == 0:
		age = computed
	}
	if age <= 0 {
		return nil
	}
	return util.IntPtr(age)
}

func positiveDigits(value string) *int {
	v := strings.TrimSpace(value)
	if v == "" || strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n == 0 {
		return nil
	}
	return util.IntPtr(n)
}

func knownText(value string) string {
	if util.IsMissing(value) {
		return ""
	}
	return strings.TrimSpace(value)
}

func kindOf(name string, s schema.Schema) internal.ColumnKind {
	switch name {
	case s.Columns.Residence:
		return internal.ColumnResidence
	case s.Columns.Age:
		return internal.ColumnAge
	case s.Columns.FillDate:
		return internal.ColumnFillDate
	case s.Columns.BirthDate:
		return internal.ColumnBirthDate
	case s.Columns.Weight:
		return internal.ColumnWeight
	case s.Columns.Height:
		return internal.ColumnHeight
	case s.Columns.Retention:
		return internal.ColumnRetention
	default:
		return internal.ColumnText
	}
}

// ResolveResidences replaces every residence with its boundary name, or nil
// when nothing matches.
func ResolveResidences(ds internal.Dataset, idx *geo.Index) internal.Dataset {
	out := ds
	out.Records = make([]internal.CanonicalRecord, len(ds.Records))
	for i, rec := range ds.Records {
		if rec.Residence != nil {
			rec.Residence = idx.Resolve(*rec.Residence)
		}
		out.Records[i] = rec
	}
	return out
}

// TagSentiment labels the feedback column of every record and appends the
// label column to the header.
func TagSentiment(ds internal.Dataset, tagger *sentiment.Tagger, s schema.Schema) internal.Dataset {
	out := ds
	out.Columns = append(append([]internal.ColumnRef(nil), ds.Columns...), internal.ColumnRef{
		Name: s.Derived.Sentiment,
		Kind: internal.ColumnSentiment,
	})
	out.Records = make([]internal.CanonicalRecord, len(ds.Records))
	for i, rec := range ds.Records {
		rec.Sentiment = tagger.Tag(rec.Text[s.Columns.Feedback])
		out.Records[i] = rec
	}
	return out
}
