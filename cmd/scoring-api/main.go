package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"donorprep/internal/api"
	"donorprep/internal/config"
	"donorprep/internal/eligibility"
	"donorprep/internal/logging"
	"donorprep/internal/pipeline"
	"donorprep/internal/schema"
	"donorprep/internal/storage"
)

// scoring-api makes sure the canonical dataset exists, then serves the
// eligibility model over HTTP.
func main() {
	cfg, err := config.Load()
	must(err)

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	proc, err := pipeline.NewPreprocessorFromConfig(cfg, db, logger)
	must(err)
	_, err = proc.Run(ctx, pipeline.PathsFromConfig(cfg), false)
	must(err)

	sch, err := schema.Load(cfg.SurveySchemaFile)
	must(err)
	model, err := eligibility.LoadModel(cfg.PreDatasetFile, sch, cfg.ScoringPolicy)
	must(err)

	must(api.NewServer(cfg.APIAddr, model, logger).Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
