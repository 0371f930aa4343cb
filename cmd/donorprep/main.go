package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"donorprep/internal/api"
	"donorprep/internal/config"
	"donorprep/internal/eligibility"
	"donorprep/internal/geo"
	"donorprep/internal/logging"
	"donorprep/internal/pipeline"
	"donorprep/internal/schema"
	"donorprep/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "preprocess":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dataset := fs.String("dataset", cfg.RawDatasetFile, "raw survey workbook")
		geodata := fs.String("geodata", cfg.RawGeoFile, "raw boundary file (.shp, .zip, .geojson)")
		outDataset := fs.String("out-dataset", cfg.PreDatasetFile, "canonical dataset xlsx")
		outGeodata := fs.String("out-geodata", cfg.PreGeoFile, "canonical boundary geojson")
		force := fs.Bool("force", false, "rebuild even when outputs exist")
		_ = fs.Parse(os.Args[2:])

		proc, err := pipeline.NewPreprocessorFromConfig(cfg, db, logger)
		must(err)
		res, err := proc.Run(ctx, pipeline.Paths{
			Dataset:    *dataset,
			Geo:        *geodata,
			OutDataset: *outDataset,
			OutGeo:     *outGeodata,
		}, *force)
		must(err)
		if res.Skipped {
			fmt.Printf("preprocess skipped trace=%s (outputs exist, use --force)\n", res.TraceID)
			return
		}
		fmt.Printf("preprocess done trace=%s rows=%d features=%d resolved=%d eligible=%d dataset=%s geodata=%s\n",
			res.TraceID, res.Counts["rows"], res.Features, res.Counts["resolved"], res.Counts["eligible"], *outDataset, *outGeodata)
	case "geo:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		url := fs.String("url", cfg.GeoSourceURL, "boundary archive url")
		out := fs.String("out", cfg.RawGeoFile, "destination path")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("GEO_SOURCE_URL", *url))

		fetcher := geo.NewFetcher(time.Duration(cfg.GeoFetchTimeoutMs)*time.Millisecond, cfg.GeoFetchRetries)
		n, err := fetcher.Fetch(ctx, *url, *out)
		must(err)
		fmt.Printf("geo fetch done bytes=%d out=%s\n", n, *out)
	case "entries":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dataset := fs.String("dataset", cfg.PreDatasetFile, "canonical dataset xlsx")
		_ = fs.Parse(os.Args[2:])

		model, err := loadModel(cfg, *dataset)
		must(err)
		printJSON(model.Entries())
	case "predict":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dataset := fs.String("dataset", cfg.PreDatasetFile, "canonical dataset xlsx")
		age := fs.Int("age", 0, "age in years, 0 for unknown")
		genre := fs.String("genre", "", "Homme|Femme")
		professions := fs.String("professions", "", "comma separated professions")
		conditions := fs.String("conditions", "", "comma separated health conditions")
		_ = fs.Parse(os.Args[2:])

		model, err := loadModel(cfg, *dataset)
		must(err)
		q := eligibility.Query{
			Genre:            strings.TrimSpace(*genre),
			Professions:      splitList(*professions),
			HealthConditions: splitList(*conditions),
		}
		if *age > 0 {
			q.Age = age
		}
		printJSON(model.Predict(q))
	case "serve":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dataset := fs.String("dataset", cfg.PreDatasetFile, "canonical dataset xlsx")
		addr := fs.String("addr", cfg.APIAddr, "listen address")
		_ = fs.Parse(os.Args[2:])

		model, err := loadModel(cfg, *dataset)
		must(err)
		must(api.NewServer(*addr, model, logger).Run(ctx))
	case "runs:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		limit := fs.Int("limit", 20, "max runs")
		_ = fs.Parse(os.Args[2:])

		runs, err := db.ListRuns(*limit)
		must(err)
		for _, r := range runs {
			line := fmt.Sprintf("%s %s status=%s rows=%d totalMs=%.0f", r.CreatedAt, r.TraceID, r.Status, r.Counts["rows"], r.Timings["totalMs"])
			if r.Error != "" {
				line += " error=" + r.Error
			}
			fmt.Println(line)
		}
		last, err := db.GetMetadata(storage.MetaLastSuccess)
		must(err)
		if last != nil {
			fmt.Printf("last success: %s\n", *last)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func loadModel(cfg config.Config, dataset string) (*eligibility.Model, error) {
	sch, err := schema.Load(cfg.SurveySchemaFile)
	if err != nil {
		return nil, err
	}
	return eligibility.LoadModel(dataset, sch, cfg.ScoringPolicy)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func printJSON(v any) {
	blob, err := json.MarshalIndent(v, "", "  ")
	must(err)
	fmt.Println(string(blob))
}

func usage() {
	fmt.Println("usage: donorprep <command>")
	fmt.Println("commands:")
	fmt.Println("  preprocess [--dataset=...] [--geodata=...] [--out-dataset=...] [--out-geodata=...] [--force]")
	fmt.Println("  geo:fetch [--url=...] [--out=...]")
	fmt.Println("  entries [--dataset=...]")
	fmt.Println("  predict [--age=30] [--genre=Homme] [--professions=a,b] [--conditions=a,b]")
	fmt.Println("  serve [--addr=0.0.0.0:8000]")
	fmt.Println("  runs:list [--limit=20]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
