package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"modelcore/internal/history"
)

// Config describes how a Service is assembled.
type Config struct {
	Storage     StorageConfig `yaml:"storage"`
	History     HistoryConfig `yaml:"history"`
	Author      string        `yaml:"author"`
	ActivePhase string        `yaml:"active_phase"`
}

// StorageConfig selects and parameterizes the persistence backend.
type StorageConfig struct {
	Driver      StorageDriver `yaml:"driver" validate:"oneof=memory sqlite postgres badger"`
	SQLitePath  string        `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	PostgresDSN string        `yaml:"postgres_dsn"`
	BadgerPath  string        `yaml:"badger_path" validate:"required_if=Driver badger"`
}

// HistoryConfig bounds and tunes the undo history.
type HistoryConfig struct {
	Capacity int    `yaml:"capacity" validate:"gte=1,lte=1000"`
	Strategy string `yaml:"strategy" validate:"omitempty,oneof=append-only run-compression counted-run triple-collapse v1 v2 v3 v4"`
}

// DefaultConfig returns the configuration used when nothing is specified.
func DefaultConfig() Config {
	return Config{
		Storage: StorageConfig{
			Driver:     StorageSQLite,
			SQLitePath: "modelcore.db",
			BadgerPath: "modelcore.badger",
		},
		History: HistoryConfig{
			Capacity: history.DefaultCapacity,
			Strategy: history.DefaultStrategy.String(),
		},
	}
}

// Environment overrides, applied after the config file.
//
//	MODELCORE_STORAGE_DRIVER: memory|sqlite|postgres|badger
//	MODELCORE_SQLITE_PATH, MODELCORE_POSTGRES_DSN, MODELCORE_BADGER_PATH
//	MODELCORE_HISTORY_CAPACITY, MODELCORE_HISTORY_STRATEGY
//	MODELCORE_AUTHOR, MODELCORE_ACTIVE_PHASE
const envPrefix = "MODELCORE_"

var configValidate = validator.New()

// LoadConfig reads path (optional), applies MODELCORE_* environment
// overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeConfig(data, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeConfig(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SQLITE_PATH":      &cfg.Storage.SQLitePath,
		"POSTGRES_DSN":     &cfg.Storage.PostgresDSN,
		"BADGER_PATH":      &cfg.Storage.BadgerPath,
		"HISTORY_STRATEGY": &cfg.History.Strategy,
		"AUTHOR":           &cfg.Author,
		"ACTIVE_PHASE":     &cfg.ActivePhase,
	}
	for key, dst := range strs {
		if v, ok := lookup(envPrefix + key); ok {
			*dst = v
		}
	}
	if v, ok := lookup(envPrefix + "STORAGE_DRIVER"); ok && v != "" {
		cfg.Storage.Driver = StorageDriver(v)
	}
	if v, ok := lookup(envPrefix + "HISTORY_CAPACITY"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sHISTORY_CAPACITY: %w", envPrefix, err)
		}
		cfg.History.Capacity = n
	}
	return nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HistoryOptions converts the history section into manager options.
func (c Config) HistoryOptions() ([]history.Option, error) {
	strategy, err := history.ParseStrategy(c.History.Strategy)
	if err != nil {
		return nil, err
	}
	return []history.Option{history.WithCapacity(c.History.Capacity), history.WithStrategy(strategy)}, nil
}
