// Package config loads refcache settings from refcache.yaml and the
// environment. Environment variables win over the file.
//
//	referenceTable: References   # REFERENCE_TABLE
//	scheduleTable: Schedules     # SCHEDULE_TABLE
//	functions:
//	  insert: my-insert-fn       # INSERT_LAMBDA
//	  query: my-query-fn         # QUERY_LAMBDA
//	  remove: my-remove-fn       # REMOVE_LAMBDA
//	dataDir: ./data              # REFCACHE_DB, local BadgerDB store
//	logLevel: info               # REFCACHE_LOG_LEVEL
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/acksell/refcache/dynamodb/engine"
	"github.com/acksell/refcache/dynamodb/table"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const FileName = "refcache.yaml"

var validate = validator.New()

type Config struct {
	// ReferenceTable stores object records.
	ReferenceTable string `yaml:"referenceTable" validate:"required"`
	// ScheduleTable stores schedule records. Empty disables them.
	ScheduleTable string    `yaml:"scheduleTable"`
	Functions     Functions `yaml:"functions"`
	// DataDir is where the local BadgerDB store keeps its data.
	DataDir  string `yaml:"dataDir"`
	LogLevel string `yaml:"logLevel" validate:"omitempty,oneof=debug info warn error"`
}

// Functions names the remote function behind each operation.
type Functions struct {
	Insert string `yaml:"insert" validate:"required"`
	Query  string `yaml:"query" validate:"required"`
	Remove string `yaml:"remove" validate:"required"`
}

func Default() Config {
	fns := engine.DefaultFunctions()
	return Config{
		ReferenceTable: table.DefaultReferenceTable,
		ScheduleTable:  table.DefaultScheduleTable,
		Functions: Functions{
			Insert: fns.Insert,
			Query:  fns.Query,
			Remove: fns.Remove,
		},
		LogLevel: "info",
	}
}

// Load searches for refcache.yaml starting from the current directory and
// walking up to the filesystem root, then applies environment overrides.
// A missing file is not an error.
func Load() (Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile reads the config at path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	cfg.applyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for env, field := range map[string]*string{
		"REFERENCE_TABLE":    &c.ReferenceTable,
		"SCHEDULE_TABLE":     &c.ScheduleTable,
		"INSERT_LAMBDA":      &c.Functions.Insert,
		"QUERY_LAMBDA":       &c.Functions.Query,
		"REMOVE_LAMBDA":      &c.Functions.Remove,
		"REFCACHE_DB":        &c.DataDir,
		"REFCACHE_LOG_LEVEL": &c.LogLevel,
	} {
		if v, ok := lookup(env); ok {
			*field = v
		}
	}
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %s %s", verrs[0].Namespace(), verrs[0].Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Tables maps record variants to the configured tables.
func (c Config) Tables() table.Resolver {
	return table.NewResolver(c.ReferenceTable, c.ScheduleTable)
}

func (c Config) EngineFunctions() engine.Functions {
	return engine.Functions{
		Insert: c.Functions.Insert,
		Query:  c.Functions.Query,
		Remove: c.Functions.Remove,
	}
}

func (c Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// findConfigFile searches for refcache.yaml walking up from current directory.
func findConfigFile() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}
