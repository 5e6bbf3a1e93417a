// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// S3Config holds the optional S3-compatible object store settings.
type S3Config struct {
	Region   string `env:"REGION"   envDefault:"eu-west-1"`
	Endpoint string `env:"ENDPOINT"`
	KeyID    string `env:"KEY_ID"`
	Secret   string `env:"SECRET"`
}

// Enabled reports whether static credentials were supplied.
func (c S3Config) Enabled() bool {
	return c.KeyID != "" && c.Secret != ""
}

// Config holds everything the functions need. Nothing in the core reads the
// environment directly; it receives these values through constructors.
type Config struct {
	ProjectID      string `env:"PROJECT_ID,required,notEmpty"`
	VertexAIRegion string `env:"VERTEX_AI_REGION" envDefault:"us-central1"`
	VertexModel    string `env:"VERTEX_MODEL"     envDefault:"gemini-1.5-pro"`

	WorkflowLocation       string `env:"WORKFLOW_LOCATION"            envDefault:"us-central1"`
	CategorizationJob      string `env:"CATEGORIZATION_JOB"           envDefault:"data-categorization-job"`
	SegmentationJob        string `env:"SEGMENTATION_JOB"             envDefault:"data-segmentation-job"`
	CategorizationFunction string `env:"CATEGORIZATION_FUNCTION_NAME" envDefault:"data-categorization"`

	BucketAllowPattern string   `env:"BUCKET_ALLOW_PATTERN" envDefault:"^data-[a-z0-9-]+$"`
	AllowedSchemes     []string `env:"ALLOWED_SCHEMES"      envDefault:"gs,s3" envSeparator:","`

	ArtifactScheme  string `env:"ARTIFACT_SCHEME"   envDefault:"gs"`
	ScriptBucket    string `env:"SCRIPT_BUCKET"     envDefault:"data-categorization-temp"`
	ScriptKeyPrefix string `env:"SCRIPT_KEY_PREFIX" envDefault:"scripts/segmentation-script-"`
	OutputBucket    string `env:"OUTPUT_BUCKET"     envDefault:"data-categorization-temp"`
	OutputPrefix    string `env:"OUTPUT_PREFIX"     envDefault:"segmentation-output"`

	ResultStoreBackend string `env:"RESULT_STORE_BACKEND" envDefault:"firestore"`
	ResultsCollection  string `env:"RESULTS_COLLECTION"   envDefault:"data-categorization-file-metadata"`

	SampleRows     int   `env:"MODEL_SAMPLE_ROWS" envDefault:"5"`
	SampleMaxBytes int64 `env:"SAMPLE_MAX_BYTES"  envDefault:"1048576"`
	PreviewRows    int   `env:"PREVIEW_ROWS"      envDefault:"20"`

	S3 S3Config `envPrefix:"S3_"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that env tags cannot express.
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.BucketAllowPattern); err != nil {
		return fmt.Errorf("BUCKET_ALLOW_PATTERN is not a valid regexp: %w", err)
	}
	if c.CategorizationJob == "" || c.SegmentationJob == "" {
		return fmt.Errorf("CATEGORIZATION_JOB and SEGMENTATION_JOB must be set")
	}
	if c.SampleRows <= 0 {
		return fmt.Errorf("MODEL_SAMPLE_ROWS must be positive, got %d", c.SampleRows)
	}
	switch c.ResultStoreBackend {
	case "firestore", "memory":
	default:
		return fmt.Errorf("RESULT_STORE_BACKEND must be firestore or memory, got %q", c.ResultStoreBackend)
	}
	return nil
}

// BucketPattern returns the compiled bucket allow-list.
func (c *Config) BucketPattern() *regexp.Regexp {
	return regexp.MustCompile(c.BucketAllowPattern)
}

// SlogLevel maps LogLevel to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
