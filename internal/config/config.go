package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	AgeModePreferExplicit = "prefer_explicit"
	AgeModeSum            = "sum"

	ScoringPolicyReport = "report"
	ScoringPolicyLegacy = "legacy"
)

type Config struct {
	DBPath string

	RawDatasetFile string
	RawGeoFile     string
	PreDatasetFile string
	PreGeoFile     string

	SurveySchemaFile     string
	SentimentLexiconFile string

	GeoNameKey        string
	GeoMatchCutoff    float64
	GeoSourceURL      string
	GeoFetchTimeoutMs int
	GeoFetchRetries   int

	AgeMode            string
	PreprocessRealtime bool

	ScoringPolicy string
	APIAddr       string

	LogLevel  string
	LogFormat string
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath: getEnv("DB_PATH", filepath.Join(cwd, "data", "runs.db")),

		RawDatasetFile: getEnv("RAW_DATASET_FILE", filepath.Join(cwd, "data", "raw", "dataset.xlsx")),
		RawGeoFile:     getEnv("RAW_GEO_FILE", filepath.Join(cwd, "data", "raw", "cmr_admbnda_adm3_inc_20180104.shp")),
		PreDatasetFile: getEnv("PRE_DATASET_FILE", filepath.Join(cwd, "data", "preprocessed", "dataset.xlsx")),
		PreGeoFile:     getEnv("PRE_GEO_FILE", filepath.Join(cwd, "data", "preprocessed", "cmr_admbnda_adm3_inc_20180104.json")),

		SurveySchemaFile:     getEnv("SURVEY_SCHEMA_FILE", ""),
		SentimentLexiconFile: getEnv("SENTIMENT_LEXICON_FILE", ""),

		GeoNameKey:        getEnv("GEO_NAME_KEY", "ADM3_FR"),
		GeoMatchCutoff:    getEnvFloat("GEO_MATCH_CUTOFF", 0.6),
		GeoSourceURL:      getEnv("GEO_SOURCE_URL", ""),
		GeoFetchTimeoutMs: getEnvInt("GEO_FETCH_TIMEOUT_MS", 60000),
		GeoFetchRetries:   getEnvInt("GEO_FETCH_RETRIES", 5),

		AgeMode:            strings.ToLower(getEnv("AGE_MODE", AgeModePreferExplicit)),
		PreprocessRealtime: getEnvBool("PREPROCESS_REALTIME", false),

		ScoringPolicy: strings.ToLower(getEnv("SCORING_POLICY", ScoringPolicyReport)),
		APIAddr:       getEnv("API_ADDR", "0.0.0.0:8000"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.AgeMode {
	case AgeModePreferExplicit, AgeModeSum:
	default:
		return fmt.Errorf("invalid AGE_MODE: %s", c.AgeMode)
	}
	switch c.ScoringPolicy {
	case ScoringPolicyReport, ScoringPolicyLegacy:
	default:
		return fmt.Errorf("invalid SCORING_POLICY: %s", c.ScoringPolicy)
	}
	if c.GeoMatchCutoff < 0 || c.GeoMatchCutoff > 1 {
		return fmt.Errorf("GEO_MATCH_CUTOFF must be within [0, 1], got %v", c.GeoMatchCutoff)
	}
	return nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
