package eligibility

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donorprep/internal"
	"donorprep/internal/config"
	"donorprep/internal/pipeline"
	"donorprep/internal/schema"
	"donorprep/internal/util"
)

func fixtureDataset() internal.Dataset {
	rec := func(genre, profession string, age *int, criteria ...int) internal.CanonicalRecord {
		sum := 0
		for _, c := range criteria {
			sum += c
		}
		return internal.CanonicalRecord{
			Genre:      genre,
			Profession: profession,
			Age:        age,
			Criteria:   criteria,
			Eligible:   sum == 0,
			Text:       map[string]string{"Genre": genre, "Profession": profession, "Si autres raison préciser": internal.MissingValue},
		}
	}
	return internal.Dataset{
		Columns: []internal.ColumnRef{
			{Name: "Genre", Kind: internal.ColumnText, Key: "Genre"},
			{Name: "Profession", Kind: internal.ColumnText, Key: "Profession"},
			{Name: "Age", Kind: internal.ColumnAge},
			{Name: "ÉLIGIBILITÉ AU DON.", Kind: internal.ColumnEligibilityHead},
			{Name: "Est sous anti-biothérapie", Kind: internal.ColumnCriterion, Criterion: 0},
			{Name: "Drepanocytaire", Kind: internal.ColumnCriterion, Criterion: 1},
			{Name: "Si autres raison préciser", Kind: internal.ColumnText, Key: "Si autres raison préciser"},
			{Name: "Eligible", Kind: internal.ColumnEligible},
		},
		Criteria: []string{"Est sous anti-biothérapie", "Drepanocytaire"},
		Records: []internal.CanonicalRecord{
			rec("Homme", "Etudiant", util.IntPtr(25), 0, 0),
			rec("Homme", "Etudiant", util.IntPtr(30), 1, 0),
			rec("Femme", "Enseignant", util.IntPtr(25), 0, 0),
			rec("Femme", "Etudiant", nil, 0, 0),
			rec("Homme", "Chauffeur", util.IntPtr(40), 0, 1),
		},
	}
}

func TestPredictReport(t *testing.T) {
	m := NewModel(fixtureDataset(), config.ScoringPolicyReport)

	p := m.Predict(Query{})
	assert.Equal(t, OutcomeScored, p.Outcome)
	assert.InDelta(t, 0.6, p.Score, 1e-9)

	p = m.Predict(Query{Genre: "Homme"})
	assert.InDelta(t, 1.0/3, p.Score, 1e-9)

	p = m.Predict(Query{Genre: "Homme", Professions: []string{"Etudiant"}})
	assert.InDelta(t, 2.0/9, p.Score, 1e-9)

	p = m.Predict(Query{Age: util.IntPtr(25)})
	assert.InDelta(t, 1.0, p.Score, 1e-9)

	p = m.Predict(Query{Professions: []string{"Chauffeur"}})
	assert.Equal(t, OutcomeScored, p.Outcome)
	assert.InDelta(t, 0.0, p.Score, 1e-9)

	p = m.Predict(Query{Genre: "Homme", HealthConditions: []string{"Drepanocytaire"}})
	assert.Equal(t, OutcomeIneligible, p.Outcome)
	assert.Zero(t, p.Score)

	p = m.Predict(Query{HealthConditions: []string{"Grippe"}})
	assert.Equal(t, OutcomeScored, p.Outcome)
	assert.InDelta(t, 1.0, p.Score, 1e-9)
}

func TestPredictInsufficientData(t *testing.T) {
	m := NewModel(fixtureDataset(), "")

	p := m.Predict(Query{Genre: "Autre", Professions: []string{"Etudiant"}, Age: util.IntPtr(99)})
	assert.Equal(t, OutcomeInsufficient, p.Outcome)
	assert.Equal(t, []string{"genre:Autre", "age:99"}, p.Insufficient)
	assert.InDelta(t, 2.0/3, p.Score, 1e-9)

	empty := NewModel(internal.Dataset{}, "")
	p = empty.Predict(Query{})
	assert.Equal(t, OutcomeInsufficient, p.Outcome)
}

func TestPredictLegacy(t *testing.T) {
	m := NewModel(fixtureDataset(), config.ScoringPolicyLegacy)

	p := m.Predict(Query{Genre: "Autre"})
	assert.Equal(t, OutcomeScored, p.Outcome)
	assert.InDelta(t, 1.0, p.Score, 1e-9)

	// No eligible chauffeur counts as one.
	p = m.Predict(Query{Professions: []string{"Chauffeur"}})
	assert.InDelta(t, 1.0, p.Score, 1e-9)
	assert.Empty(t, p.Insufficient)
}

func TestEntries(t *testing.T) {
	e := NewModel(fixtureDataset(), "").Entries()
	assert.Equal(t, []string{"Est sous anti-biothérapie", "Drepanocytaire"}, e.HealthConditions)
	assert.Equal(t, []string{"Etudiant", "Enseignant", "Chauffeur"}, e.Professions)
	assert.Equal(t, []string{"Homme", "Femme"}, e.Genres)
}

func TestLoadModelFromCanonicalWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	require.NoError(t, pipeline.WriteDatasetXLSX(fixtureDataset(), path))

	m, err := LoadModel(path, schema.Default(), config.ScoringPolicyReport)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Size())

	want := NewModel(fixtureDataset(), config.ScoringPolicyReport)
	assert.Equal(t, want.Entries(), m.Entries())
	for _, q := range []Query{{}, {Genre: "Homme"}, {Age: util.IntPtr(25)}, {Professions: []string{"Etudiant"}}} {
		assert.InDelta(t, want.Predict(q).Score, m.Predict(q).Score, 1e-9)
	}
}

func TestLoadModelSchemaMismatch(t *testing.T) {
	ds := fixtureDataset()
	ds.Columns[3].Name = "ELIGIBILITE"
	path := filepath.Join(t.TempDir(), "dataset.xlsx")
	require.NoError(t, pipeline.WriteDatasetXLSX(ds, path))

	_, err := LoadModel(path, schema.Default(), "")
	require.ErrorIs(t, err, schema.ErrSchemaMismatch)
}
