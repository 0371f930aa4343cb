package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"donorprep/internal"
	"donorprep/internal/config"
	"donorprep/internal/geo"
	"donorprep/internal/schema"
	"donorprep/internal/sentiment"
	"donorprep/internal/storage"
)

var ErrSourceMissing = errors.New("source file missing")

type Paths struct {
	Dataset    string
	Geo        string
	OutDataset string
	OutGeo     string
}

func PathsFromConfig(cfg config.Config) Paths {
	return Paths{
		Dataset:    cfg.RawDatasetFile,
		Geo:        cfg.RawGeoFile,
		OutDataset: cfg.PreDatasetFile,
		OutGeo:     cfg.PreGeoFile,
	}
}

// Preprocessor turns the raw survey workbook and boundary file into the
// canonical dataset and GeoJSON. A nil db disables the run ledger.
type Preprocessor struct {
	cfg    config.Config
	db     *storage.DB
	schema schema.Schema
	tagger *sentiment.Tagger
	logger zerolog.Logger
	now    func() time.Time
}

func NewPreprocessor(cfg config.Config, db *storage.DB, sch schema.Schema, tagger *sentiment.Tagger, logger zerolog.Logger) *Preprocessor {
	if tagger == nil {
		tagger = sentiment.NewTagger(nil)
	}
	return &Preprocessor{cfg: cfg, db: db, schema: sch, tagger: tagger, logger: logger, now: time.Now}
}

type Result struct {
	TraceID  string
	Skipped  bool
	Dataset  internal.Dataset
	Layouts  []DetectResult
	Features int
	Timings  map[string]float64
	Counts   map[string]int
}

// Run executes every stage in sequence. Unless force is set or realtime
// preprocessing is configured, it does nothing when both outputs exist.
func (p *Preprocessor) Run(ctx context.Context, paths Paths, force bool) (res Result, err error) {
	start := time.Now()
	res = Result{
		TraceID: uuid.NewString(),
		Timings: map[string]float64{},
		Counts:  map[string]int{},
	}
	logger := p.logger.With().Str("traceId", res.TraceID).Logger()

	defer func() {
		res.Timings["totalMs"] = float64(time.Since(start).Milliseconds())
		p.record(res, paths, err, logger)
	}()

	for _, src := range []string{paths.Dataset, paths.Geo} {
		if _, statErr := os.Stat(src); statErr != nil {
			return res, fmt.Errorf("%w: %s", ErrSourceMissing, src)
		}
	}

	if !force && !p.cfg.PreprocessRealtime && exists(paths.OutDataset) && exists(paths.OutGeo) {
		logger.Info().Str("dataset", paths.OutDataset).Str("geo", paths.OutGeo).Msg("preprocessed outputs present, skipping")
		res.Skipped = true
		return res, nil
	}

	for _, out := range []string{paths.OutDataset, paths.OutGeo} {
		if mkErr := os.MkdirAll(filepath.Dir(out), 0o755); mkErr != nil {
			return res, mkErr
		}
	}

	stage := func(name string, fn func() error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t0 := time.Now()
		logger.Info().Str("stage", name).Msg("stage started")
		if stageErr := fn(); stageErr != nil {
			return fmt.Errorf("%s: %w", name, stageErr)
		}
		res.Timings[name+"Ms"] = float64(time.Since(t0).Milliseconds())
		logger.Debug().Str("stage", name).Float64("ms", res.Timings[name+"Ms"]).Msg("stage done")
		return nil
	}

	var (
		names  []string
		sheets []internal.Sheet
		merged internal.Table
		ds     internal.Dataset
	)

	if err = stage("geo", func() error {
		coll, loadErr := geo.Load(paths.Geo, p.cfg.GeoNameKey)
		if loadErr != nil {
			return loadErr
		}
		if writeErr := coll.WriteGeoJSON(paths.OutGeo); writeErr != nil {
			return writeErr
		}
		canonical, readErr := geo.Load(paths.OutGeo, p.cfg.GeoNameKey)
		if readErr != nil {
			return readErr
		}
		names = canonical.Names()
		res.Features = len(canonical.Features)
		return nil
	}); err != nil {
		return res, err
	}

	if err = stage("merge", func() error {
		var readErr error
		sheets, readErr = ReadWorkbook(paths.Dataset)
		if readErr != nil {
			return readErr
		}
		var mergeErr error
		merged, res.Layouts, mergeErr = MergeSheets(sheets, p.schema)
		return mergeErr
	}); err != nil {
		return res, err
	}
	for _, l := range res.Layouts {
		logger.Debug().Str("sheet", l.Sheet).Str("layout", string(l.Layout)).Float64("score", l.Score).Str("reason", l.Reason).Msg("sheet layout")
	}

	if err = stage("derive", func() error {
		normalized := NormalizeTable(merged, p.schema)
		var deriveErr error
		ds, deriveErr = Derive(normalized, p.schema, DeriveOptions{AgeMode: p.cfg.AgeMode, Now: p.now()})
		return deriveErr
	}); err != nil {
		return res, err
	}

	if err = stage("resolve", func() error {
		ds = ResolveResidences(ds, geo.BuildIndex(names, p.cfg.GeoMatchCutoff))
		return nil
	}); err != nil {
		return res, err
	}

	if err = stage("sentiment", func() error {
		ds = TagSentiment(ds, p.tagger, p.schema)
		return nil
	}); err != nil {
		return res, err
	}

	if err = stage("write", func() error {
		return WriteDatasetXLSX(ds, paths.OutDataset)
	}); err != nil {
		return res, err
	}

	res.Dataset = ds
	res.Counts = datasetCounts(ds, len(sheets), res.Features)
	logger.Info().Int("rows", len(ds.Records)).Int("features", res.Features).Str("dataset", paths.OutDataset).Msg("preprocessing done")
	return res, nil
}

func (p *Preprocessor) record(res Result, paths Paths, runErr error, logger zerolog.Logger) {
	if p.db == nil {
		return
	}
	run := internal.RunRow{
		TraceID:    res.TraceID,
		Status:     storage.RunStatusOK,
		DatasetOut: paths.OutDataset,
		GeoOut:     paths.OutGeo,
		Timings:    res.Timings,
		Counts:     res.Counts,
	}
	switch {
	case runErr != nil:
		run.Status = storage.RunStatusFailed
		run.Error = runErr.Error()
	case res.Skipped:
		run.Status = storage.RunStatusSkipped
	}
	if err := p.db.InsertRun(run); err != nil {
		logger.Error().Err(err).Msg("record run")
		return
	}
	if run.Status == storage.RunStatusOK {
		if err := p.db.SetMetadata(storage.MetaLastSuccess, p.now().UTC().Format(time.RFC3339)); err != nil {
			logger.Error().Err(err).Msg("record last success")
		}
	}
}

func datasetCounts(ds internal.Dataset, sheets, features int) map[string]int {
	counts := map[string]int{
		"sheets":   sheets,
		"rows":     len(ds.Records),
		"features": features,
		"criteria": len(ds.Criteria),
	}
	for _, rec := range ds.Records {
		if rec.Residence != nil {
			counts["resolved"]++
		}
		if rec.Eligible {
			counts["eligible"]++
		}
		if rec.Age != nil {
			counts["withAge"]++
		}
		counts["sentiment"+string(rec.Sentiment)]++
	}
	return counts
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewPreprocessorFromConfig loads the survey schema and sentiment lexicon
// named in cfg (embedded defaults when unset).
func NewPreprocessorFromConfig(cfg config.Config, db *storage.DB, logger zerolog.Logger) (*Preprocessor, error) {
	sch, err := schema.Load(cfg.SurveySchemaFile)
	if err != nil {
		return nil, err
	}
	lex, err := sentiment.LoadLexicon(cfg.SentimentLexiconFile)
	if err != nil {
		return nil, err
	}
	return NewPreprocessor(cfg, db, sch, sentiment.NewTagger(lex), logger), nil
}
