package app

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/radio-ingest/internal/ingest"
	"github.com/roman-kulish/radio-ingest/internal/storage"
	"github.com/roman-kulish/radio-ingest/internal/telemetry"
)

// envPrefix is the prefix of environment variables overriding the config file,
// e.g. INGEST_CATALOG_TABLE
const envPrefix = "INGEST"

// Config represents the main application configuration
type Config struct {
	Settings Settings      `yaml:"settings" envconfig:"SETTINGS"`
	Input    InputConfig   `yaml:"input" envconfig:"INPUT"`
	Catalog  CatalogConfig `yaml:"catalog" envconfig:"CATALOG"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel" envconfig:"LOG_LEVEL" validate:"oneof=debug info warn error"`
}

// InputConfig controls how the telemetry log is read
type InputConfig struct {
	Compression string `yaml:"compression" envconfig:"COMPRESSION" validate:"oneof=auto none gzip zstd"`
	OuterScope  string `yaml:"outerScope" envconfig:"OUTER_SCOPE" validate:"oneof=last nested"`
}

// CatalogConfig represents the table catalog settings
type CatalogConfig struct {
	Warehouse    string `yaml:"warehouse" envconfig:"WAREHOUSE" validate:"required"`
	Namespace    string `yaml:"namespace" envconfig:"NAMESPACE" validate:"required"`
	Table        string `yaml:"table" envconfig:"TABLE" validate:"required"`
	MaxBatchSize int    `yaml:"maxBatchSize" envconfig:"MAX_BATCH_SIZE" validate:"min=1"`
}

// Ident returns the catalog identifier of the target table
func (c *CatalogConfig) Ident() (storage.TableIdent, error) {
	return storage.NewTableIdent(c.Namespace, c.Table)
}

// compression returns the configured input compression
func (c *InputConfig) compression() (ingest.Compression, error) {
	return ingest.ParseCompression(c.Compression)
}

// scope returns the configured scoping of outer device identifiers
func (c *InputConfig) scope() (telemetry.Scope, error) {
	return telemetry.ParseScope(c.OuterScope)
}

// NewConfig returns the configuration used when no file or environment
// overrides are given
func NewConfig() *Config {
	return &Config{
		Settings: Settings{
			LogLevel: "info",
		},
		Input: InputConfig{
			Compression: "auto",
			OuterScope:  "last",
		},
		Catalog: CatalogConfig{
			Warehouse:    "data",
			Namespace:    "default",
			Table:        "sd_test",
			MaxBatchSize: 100,
		},
	}
}

// LoadConfig layers the file at path (optional) and INGEST_* environment
// variables over the defaults and validates the result
func LoadConfig(path string) (*Config, error) {
	c := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err = yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := envconfig.Process(envPrefix, c); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			errs := make([]error, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s: failed '%s' check with value '%v'", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
