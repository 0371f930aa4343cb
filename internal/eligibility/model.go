package eligibility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"donorprep/internal"
	"donorprep/internal/config"
	"donorprep/internal/schema"
)

type Outcome string

const (
	OutcomeScored       Outcome = "scored"
	OutcomeInsufficient Outcome = "insufficient_data"
	OutcomeIneligible   Outcome = "ineligible"
)

var ErrMissingColumn = errors.New("canonical dataset column missing")

type observation struct {
	age        *int
	genre      string
	profession string
	eligible   bool
}

// Model estimates the probability of eligibility from conditional
// frequencies in the canonical dataset. It is read-only after construction
// and safe for concurrent use.
type Model struct {
	policy       string
	criteria     []string
	observations []observation
	eligible     int
}

// NewModel builds a model from a derived dataset. An empty policy means
// config.ScoringPolicyReport.
func NewModel(ds internal.Dataset, policy string) *Model {
	m := &Model{policy: normalizePolicy(policy), criteria: append([]string(nil), ds.Criteria...)}
	for _, rec := range ds.Records {
		m.add(observation{age: rec.Age, genre: rec.Genre, profession: rec.Profession, eligible: rec.Eligible})
	}
	return m
}

// LoadModel reads the canonical dataset workbook written by the pipeline.
func LoadModel(path string, s schema.Schema, policy string) (*Model, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open canonical dataset %s: %w", path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("canonical dataset %s has no sheet", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingColumn, path)
	}

	header := rows[0]
	crit, err := s.Locate(header)
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range header {
		if _, ok := idx[h]; !ok {
			idx[h] = i
		}
	}
	eligibleIdx, ok := idx[s.Derived.Eligible]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, s.Derived.Eligible)
	}

	m := &Model{policy: normalizePolicy(policy)}
	for _, i := range crit.Criteria() {
		m.criteria = append(m.criteria, header[i])
	}
	cell := func(row []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}
	for _, row := range rows[1:] {
		if eligibleIdx >= len(row) {
			continue
		}
		obs := observation{
			genre:      cell(row, s.Columns.Genre),
			profession: cell(row, s.Columns.Profession),
			eligible:   parseBool(row[eligibleIdx]),
		}
		if age, err := strconv.Atoi(cell(row, s.Columns.Age)); err == nil && age > 0 {
			obs.age = &age
		}
		m.add(obs)
	}
	return m, nil
}

func (m *Model) add(obs observation) {
	m.observations = append(m.observations, obs)
	if obs.eligible {
		m.eligible++
	}
}

func (m *Model) Size() int { return len(m.observations) }

func normalizePolicy(policy string) string {
	if policy == config.ScoringPolicyLegacy {
		return policy
	}
	return config.ScoringPolicyReport
}

func parseBool(v string) bool {
	v = strings.TrimSpace(v)
	return v == "1" || strings.EqualFold(v, "true")
}
