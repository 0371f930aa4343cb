package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"donorprep/internal"
	"donorprep/internal/config"
	"donorprep/internal/eligibility"
	"donorprep/internal/geo"
	"donorprep/internal/schema"
	"donorprep/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		GeoNameKey:     geo.DefaultNameKey,
		GeoMatchCutoff: 0.6,
		AgeMode:        config.AgeModePreferExplicit,
		ScoringPolicy:  config.ScoringPolicyReport,
	}
}

func newTestPreprocessor(t *testing.T, cfg config.Config) (*Preprocessor, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	p := NewPreprocessor(cfg, db, schema.Default(), nil, zerolog.Nop())
	p.now = func() time.Time { return testNow }
	return p, db
}

func TestPreprocessEndToEnd(t *testing.T) {
	dataset, boundaries := writeFixtures(t)
	out := t.TempDir()
	paths := Paths{
		Dataset:    dataset,
		Geo:        boundaries,
		OutDataset: filepath.Join(out, "preprocessed", "dataset.xlsx"),
		OutGeo:     filepath.Join(out, "preprocessed", "adm3.json"),
	}
	p, db := newTestPreprocessor(t, testConfig())

	res, err := p.Run(context.Background(), paths, false)
	require.NoError(t, err)
	require.False(t, res.Skipped)

	ds := res.Dataset
	require.Len(t, ds.Records, 2+1+1)
	assert.Equal(t, 2, res.Features)

	residences := make([]*string, 0, len(ds.Records))
	for _, rec := range ds.Records {
		residences = append(residences, rec.Residence)
	}
	require.NotNil(t, residences[0])
	assert.Equal(t, "Yaoundé I", *residences[0])
	require.NotNil(t, residences[1])
	assert.Equal(t, "Douala III", *residences[1])
	assert.Nil(t, residences[2])
	assert.Nil(t, residences[3])

	assert.Equal(t, []bool{true, false, true, true}, []bool{
		ds.Records[0].Eligible, ds.Records[1].Eligible, ds.Records[2].Eligible, ds.Records[3].Eligible,
	})
	assert.Equal(t, 36, *ds.Records[0].Age)
	assert.Equal(t, 40, *ds.Records[2].Age)
	assert.Equal(t, 9, *ds.Records[2].Month)
	assert.Equal(t, "Femme", ds.Records[3].Genre)
	assert.Equal(t, 8, *ds.Records[3].Month)
	assert.Equal(t, "Chretien", ds.Records[0].Religion)
	assert.Equal(t, []internal.Sentiment{
		internal.SentimentPositive, internal.SentimentNegative, internal.SentimentPositive, internal.SentimentNeutral,
	}, []internal.Sentiment{
		ds.Records[0].Sentiment, ds.Records[1].Sentiment, ds.Records[2].Sentiment, ds.Records[3].Sentiment,
	})

	coll, err := geo.Load(paths.OutGeo, geo.DefaultNameKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"Yaoundé I", "Douala III"}, coll.Names())

	f, err := excelize.OpenFile(paths.OutDataset)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(CanonicalSheet)
	require.NoError(t, err)
	require.Len(t, rows, 1+4)
	header := rows[0]
	assert.Equal(t, []string{"Year", "Month", "Eligible", "Health feedback analysis"}, header[len(header)-4:])

	runs, err := db.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.RunStatusOK, runs[0].Status)
	assert.Equal(t, res.TraceID, runs[0].TraceID)
	assert.Equal(t, 4, runs[0].Counts["rows"])
	assert.Equal(t, 2, runs[0].Counts["resolved"])
	assert.Contains(t, runs[0].Timings, "totalMs")

	last, err := db.GetMetadata(storage.MetaLastSuccess)
	require.NoError(t, err)
	require.NotNil(t, last)

	again, err := p.Run(context.Background(), paths, false)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	forced, err := p.Run(context.Background(), paths, true)
	require.NoError(t, err)
	assert.False(t, forced.Skipped)
	assert.Len(t, forced.Dataset.Records, 4)
}

func TestPreprocessThenLoadModelWithExpectedCriteria(t *testing.T) {
	dataset, boundaries := writeFixtures(t)
	out := t.TempDir()
	paths := Paths{
		Dataset:    dataset,
		Geo:        boundaries,
		OutDataset: filepath.Join(out, "dataset.xlsx"),
		OutGeo:     filepath.Join(out, "adm3.json"),
	}

	sch := schema.Default()
	sch.Criteria.Expected = []string{"Est sous anti-biothérapie", critHemo}
	p := NewPreprocessor(testConfig(), nil, sch, nil, zerolog.Nop())
	p.now = func() time.Time { return testNow }

	res, err := p.Run(context.Background(), paths, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Est sous anti-biothérapie", "Taux d'hemoglobine bas"}, res.Dataset.Criteria)

	m, err := eligibility.LoadModel(paths.OutDataset, sch, config.ScoringPolicyReport)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Size())
}

func TestPreprocessSourceMissing(t *testing.T) {
	dir := t.TempDir()
	p, db := newTestPreprocessor(t, testConfig())

	_, err := p.Run(context.Background(), Paths{
		Dataset:    filepath.Join(dir, "missing.xlsx"),
		Geo:        filepath.Join(dir, "missing.shp"),
		OutDataset: filepath.Join(dir, "out.xlsx"),
		OutGeo:     filepath.Join(dir, "out.json"),
	}, false)
	require.ErrorIs(t, err, ErrSourceMissing)

	runs, err := db.ListRuns(5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, storage.RunStatusFailed, runs[0].Status)
	assert.NotEmpty(t, runs[0].Error)

	_, statErr := os.Stat(filepath.Join(dir, "out.xlsx"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestPreprocessCanceled(t *testing.T) {
	dataset, boundaries := writeFixtures(t)
	out := t.TempDir()
	p, _ := newTestPreprocessor(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, Paths{
		Dataset:    dataset,
		Geo:        boundaries,
		OutDataset: filepath.Join(out, "dataset.xlsx"),
		OutGeo:     filepath.Join(out, "adm3.json"),
	}, false)
	require.ErrorIs(t, err, context.Canceled)
}
