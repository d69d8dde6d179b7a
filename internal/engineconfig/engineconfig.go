// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package engineconfig loads the engine's tuning constants using the
// teacher's layered koanf composition (internal/config.LoadWithKoanf):
// struct defaults, then an optional YAML file, then environment
// variables, in strictly increasing precedence. It carries every named
// default from spec §6 so every component's DefaultConfig() can be
// overridden from one place without each package knowing about koanf.
package engineconfig

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths mirrors the teacher's search order for an optional
// config file, adapted to this project's name.
var DefaultConfigPaths = []string{
	"interestengine.yaml",
	"interestengine.yml",
	"/etc/interestengine/config.yaml",
	"/etc/interestengine/config.yml",
}

// ConfigPathEnvVar names the environment variable that, if set, takes
// priority over DefaultConfigPaths when locating a config file.
const ConfigPathEnvVar = "INTERESTENGINE_CONFIG_PATH"

// CoiConfig holds the Center of Interest (CoI) tuning constants of spec §6.
type CoiConfig struct {
	Threshold   float64 `koanf:"threshold"`
	ShiftFactor float64 `koanf:"shift_factor"`
	HorizonDays int     `koanf:"horizon_days"`
}

// KeyPhraseConfig holds the key-phrase scoring constants of spec §6.
type KeyPhraseConfig struct {
	MaxKeyPhrases int       `koanf:"max_key_phrases"`
	Gamma         float64   `koanf:"gamma"`
	Penalty       []float64 `koanf:"penalty"`
}

// CoreConfig holds the epsilon-greedy reaction weighting constants.
type CoreConfig struct {
	Epsilon       float64 `koanf:"epsilon"`
	MaxReactions  int     `koanf:"max_reactions"`
	IncrReactions float64 `koanf:"incr_reactions"`
}

// ExplorationConfig holds the candidate-selection constants.
type ExplorationConfig struct {
	NumberOfCandidates int     `koanf:"number_of_candidates"`
	MaxSelectedDocs    int     `koanf:"max_selected_docs"`
	MaxSimilarity      float64 `koanf:"max_similarity"`
}

// StackConfig holds the stack scoring constants: MaxNegativeSimilarity is
// the document scorer's (docscore) negative-CoI filter threshold.
type StackConfig struct {
	MaxNegativeSimilarity float64 `koanf:"max_negative_similarity"`
}

// ServerConfig holds the HTTP listener settings, grounded on the
// teacher's ServerConfig.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// SecurityConfig holds the bearer-token and rate-limiting settings,
// grounded on the teacher's SecurityConfig.
type SecurityConfig struct {
	JWTSecret          string   `koanf:"jwt_secret"`
	TokenTimeoutHours  int      `koanf:"token_timeout_hours"`
	RateLimitPerSecond int      `koanf:"rate_limit_per_second"`
	CORSOrigins        []string `koanf:"cors_origins"`
}

// LoggingConfig holds obslog's settings, grounded on the teacher's
// LoggingConfig.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// StorageConfig holds the embedded-store file locations. DataDir is the
// root the multi-tenant engine.Registry creates per-tenant badger/ and
// duckdb/ subdirectories under; BadgerPath/DuckDBPath are loaded with
// the rest of the config, but nothing in the module reads them.
type StorageConfig struct {
	DataDir    string `koanf:"data_dir"`
	BadgerPath string `koanf:"badger_path"`
	DuckDBPath string `koanf:"duckdb_path"`
}

// EmbeddingConfig holds the external embedding model server's location,
// consumed by embedclient.HTTPModel.
type EmbeddingConfig struct {
	BaseURL    string `koanf:"base_url"`
	Model      string `koanf:"model"`
	TimeoutSec int    `koanf:"timeout_sec"`
}

// Config is the root of the engine's configuration tree.
type Config struct {
	Coi         CoiConfig         `koanf:"coi"`
	KeyPhrase   KeyPhraseConfig   `koanf:"kps"`
	Core        CoreConfig        `koanf:"core"`
	Exploration ExplorationConfig `koanf:"exploration"`
	Stack       StackConfig       `koanf:"stack"`
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Storage     StorageConfig     `koanf:"storage"`
	Embedding   EmbeddingConfig   `koanf:"embedding"`
}

// defaultConfig returns the struct-literal base layer, seeded from the
// named defaults spec §6 prescribes for every tunable.
func defaultConfig() *Config {
	return &Config{
		Coi: CoiConfig{
			Threshold:   0.67,
			ShiftFactor: 0.1,
			HorizonDays: 30,
		},
		KeyPhrase: KeyPhraseConfig{
			MaxKeyPhrases: 3,
			Gamma:         0.9,
			Penalty:       []float64{1.0, 0.75, 0.5},
		},
		Core: CoreConfig{
			Epsilon:       0.2,
			MaxReactions:  10,
			IncrReactions: 1.0,
		},
		Exploration: ExplorationConfig{
			NumberOfCandidates: 40,
			MaxSelectedDocs:    20,
			MaxSimilarity:      0.7,
		},
		Stack: StackConfig{
			MaxNegativeSimilarity: 0.7,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Security: SecurityConfig{
			TokenTimeoutHours:  24,
			RateLimitPerSecond: 20,
			CORSOrigins:        nil,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Storage: StorageConfig{
			DataDir:    "./data",
			BadgerPath: "./data/badger",
			DuckDBPath: "./data/interestengine.duckdb",
		},
		Embedding: EmbeddingConfig{
			BaseURL:    "http://localhost:11434/api",
			Model:      "nomic-embed-text",
			TimeoutSec: 30,
		},
	}
}

// Load builds a Config using the teacher's layered precedence: built-in
// defaults, then an optional YAML file (located via ConfigPathEnvVar or
// DefaultConfigPaths), then environment variables (highest priority).
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("engineconfig: load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("engineconfig: load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("INTERESTENGINE_", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("engineconfig: load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("engineconfig: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("engineconfig: validate: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransformFunc maps INTERESTENGINE_COI_THRESHOLD -> coi.threshold.
func envTransformFunc(key string) string {
	key = strings.TrimPrefix(key, "INTERESTENGINE_")
	key = strings.ToLower(key)
	return strings.ReplaceAll(key, "_", ".")
}

// Validate rejects configurations that would make the engine behave
// incoherently, per spec §7's invariant-violation handling.
func (c *Config) Validate() error {
	if c.Coi.Threshold <= 0 || c.Coi.Threshold > 1 {
		return fmt.Errorf("coi.threshold must be in (0, 1], got %v", c.Coi.Threshold)
	}
	if c.Coi.HorizonDays <= 0 {
		return fmt.Errorf("coi.horizon_days must be positive, got %d", c.Coi.HorizonDays)
	}
	if c.KeyPhrase.MaxKeyPhrases <= 0 {
		return fmt.Errorf("kps.max_key_phrases must be positive, got %d", c.KeyPhrase.MaxKeyPhrases)
	}
	if len(c.KeyPhrase.Penalty) < c.KeyPhrase.MaxKeyPhrases {
		return fmt.Errorf("kps.penalty must have at least %d entries, got %d", c.KeyPhrase.MaxKeyPhrases, len(c.KeyPhrase.Penalty))
	}
	if c.Core.Epsilon < 0 || c.Core.Epsilon > 1 {
		return fmt.Errorf("core.epsilon must be in [0, 1], got %v", c.Core.Epsilon)
	}
	if c.Exploration.NumberOfCandidates < c.Exploration.MaxSelectedDocs {
		return fmt.Errorf("exploration.number_of_candidates (%d) must be >= max_selected_docs (%d)", c.Exploration.NumberOfCandidates, c.Exploration.MaxSelectedDocs)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be a valid TCP port, got %d", c.Server.Port)
	}
	return nil
}
