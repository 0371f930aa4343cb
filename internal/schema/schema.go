package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultSchema []byte

// ErrSchemaMismatch reports a workbook header that does not carry the
// declared criterion range.
var ErrSchemaMismatch = errors.New("survey schema mismatch")

var reBracket = regexp.MustCompile(`.*\[|\]`)

// CriterionName strips the bracketed survey question prefix from a header,
// leaving the criterion description.
func CriterionName(header string) string {
	return strings.TrimSpace(reBracket.ReplaceAllString(header, ""))
}

type Columns struct {
	Residence  string `yaml:"residence"`
	FillDate   string `yaml:"fill_date"`
	BirthDate  string `yaml:"birth_date"`
	Age        string `yaml:"age"`
	Weight     string `yaml:"weight"`
	Height     string `yaml:"height"`
	Genre      string `yaml:"genre"`
	Profession string `yaml:"profession"`
	Religion   string `yaml:"religion"`
	Retention  string `yaml:"retention"`
	Feedback   string `yaml:"feedback"`
}

type Derived struct {
	Year      string `yaml:"year"`
	Month     string `yaml:"month"`
	Eligible  string `yaml:"eligible"`
	Sentiment string `yaml:"sentiment"`
}

type Criteria struct {
	Start          string   `yaml:"start"`
	End            string   `yaml:"end"`
	PositiveTokens []string `yaml:"positive_tokens"`
	Expected       []string `yaml:"expected"`
}

type SexCode struct {
	Column  string            `yaml:"column"`
	Codes   map[string]string `yaml:"codes"`
	Renames map[string]string `yaml:"renames"`
}

type Schema struct {
	Version      int      `yaml:"version"`
	Columns      Columns  `yaml:"columns"`
	Derived      Derived  `yaml:"derived"`
	NameColumns  []string `yaml:"name_columns"`
	RetentionYes string   `yaml:"retention_yes"`
	Criteria     Criteria `yaml:"criteria"`
	SexCode      SexCode  `yaml:"sex_code"`
}

// CriterionRange locates the criterion columns in a header: Start is the
// category column, criteria are the columns strictly between Start and End.
type CriterionRange struct {
	Start int
	End   int
}

func (r CriterionRange) Criteria() []int {
	out := make([]int, 0, r.End-r.Start-1)
	for i := r.Start + 1; i < r.End; i++ {
		out = append(out, i)
	}
	return out
}

// Contains reports whether column i is digitized, that is in [Start, End).
func (r CriterionRange) Contains(i int) bool {
	return i >= r.Start && i < r.End
}

func Default() Schema {
	s, err := Parse(defaultSchema)
	if err != nil {
		panic(fmt.Sprintf("embedded survey schema: %v", err))
	}
	return s
}

// Load reads a schema file, or returns the embedded default when path is empty.
func Load(path string) (Schema, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, err
	}
	return Parse(blob)
}

func Parse(blob []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(blob, &s); err != nil {
		return Schema{}, fmt.Errorf("parse survey schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

func (s Schema) validate() error {
	required := map[string]string{
		"criteria.start":    s.Criteria.Start,
		"criteria.end":      s.Criteria.End,
		"columns.residence": s.Columns.Residence,
		"columns.fill_date": s.Columns.FillDate,
		"columns.age":       s.Columns.Age,
		"derived.eligible":  s.Derived.Eligible,
		"derived.sentiment": s.Derived.Sentiment,
	}
	for name, value := range required {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("survey schema: %s is required", name)
		}
	}
	if len(s.Criteria.PositiveTokens) == 0 {
		return errors.New("survey schema: criteria.positive_tokens is empty")
	}
	return nil
}

// Locate finds the criterion range in columns and checks it against the
// declared expectations. Raw and canonical headers both match, since
// criteria are compared by CriterionName.
func (s Schema) Locate(columns []string) (CriterionRange, error) {
	start, end := indexOf(columns, s.Criteria.Start), indexOf(columns, s.Criteria.End)
	if start < 0 {
		return CriterionRange{}, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, s.Criteria.Start)
	}
	if end < 0 {
		return CriterionRange{}, fmt.Errorf("%w: column %q not found", ErrSchemaMismatch, s.Criteria.End)
	}
	if end <= start {
		return CriterionRange{}, fmt.Errorf("%w: %q must precede %q", ErrSchemaMismatch, s.Criteria.Start, s.Criteria.End)
	}

	r := CriterionRange{Start: start, End: end}
	if len(s.Criteria.Expected) == 0 {
		return r, nil
	}

	got := columns[start+1 : end]
	if len(got) != len(s.Criteria.Expected) {
		return CriterionRange{}, fmt.Errorf("%w: expected %d criteria, header has %d", ErrSchemaMismatch, len(s.Criteria.Expected), len(got))
	}
	for i, want := range s.Criteria.Expected {
		if CriterionName(got[i]) != CriterionName(want) {
			return CriterionRange{}, fmt.Errorf("%w: criterion %d is %q, expected %q", ErrSchemaMismatch, i+1, got[i], want)
		}
	}
	return r, nil
}

func (s Schema) IsCriterionPositive(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	for _, token := range s.Criteria.PositiveTokens {
		if v == strings.ToLower(token) {
			return true
		}
	}
	return false
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}
