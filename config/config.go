// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package config reads the settings shared by tools built on packfile.
//
// Settings come from an optional YAML file and can be overridden by
// environment variables named after the key with a PACKFILE_ prefix, for
// example PACKFILE_TABLE_CACHE_SIZE=16.
package config

import (
	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/suprsokr/go-packfile"
	"github.com/suprsokr/go-packfile/internal/compression"
	"github.com/suprsokr/go-packfile/schema"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes the environment variables that override settings.
const EnvPrefix = "PACKFILE"

// Settings holds the tool configuration.
type Settings struct {
	// Release selects the optional schema fields of one game release.
	Release string `mapstructure:"release"`
	// SchemaFile is the YAML schema definition file.
	SchemaFile string `mapstructure:"schema_file"`
	// Compression names the algorithm for newly compressed entries.
	Compression      string `mapstructure:"compression"`
	RecompressOnSave bool   `mapstructure:"recompress_on_save"`
	// Concurrency bounds parallel entry work. Zero uses GOMAXPROCS.
	Concurrency    int    `mapstructure:"concurrency"`
	TableCacheSize int    `mapstructure:"table_cache_size"`
	LogLevel       string `mapstructure:"log_level"`

	algorithm compression.Algorithm
	level     zapcore.Level
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("release", "")
	v.SetDefault("schema_file", "")
	v.SetDefault("compression", compression.Zstd.String())
	v.SetDefault("recompress_on_save", false)
	v.SetDefault("concurrency", 0)
	v.SetDefault("table_cache_size", packfile.DefaultTableCacheSize)
	v.SetDefault("log_level", "info")
}

// Load reads settings from path on fs. An empty path uses the defaults and
// the environment only.
func Load(fs afero.Fs, path string) (*Settings, error) {
	v := viper.New()
	v.SetFs(fs)
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read settings %s", path)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	a, err := compression.ParseAlgorithm(s.Compression)
	if err != nil {
		return errors.Wrap(err, "compression")
	}
	s.algorithm = a
	if err := s.level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if s.Concurrency < 0 {
		return errors.Newf("concurrency must not be negative, got %d", s.Concurrency)
	}
	if s.TableCacheSize < 1 {
		return errors.Newf("table_cache_size must be positive, got %d", s.TableCacheSize)
	}
	return nil
}

// PackOptions returns the container options for these settings.
func (s *Settings) PackOptions(logger *zap.Logger) []packfile.Option {
	opts := []packfile.Option{
		packfile.WithLogger(logger),
		packfile.WithCompression(s.algorithm),
		packfile.WithTableCacheSize(s.TableCacheSize),
	}
	if s.Concurrency > 0 {
		opts = append(opts, packfile.WithConcurrency(s.Concurrency))
	}
	if s.RecompressOnSave {
		opts = append(opts, packfile.WithRecompress(s.algorithm))
	}
	return opts
}

// LoadRegistry loads the schema file for the configured release. The
// registry is empty when no schema file is set.
func (s *Settings) LoadRegistry(fs afero.Fs) (*schema.Registry, error) {
	if s.SchemaFile == "" {
		return schema.NewRegistry(schema.WithRelease(s.Release)), nil
	}
	f, err := fs.Open(s.SchemaFile)
	if err != nil {
		return nil, errors.Wrap(err, "open schema file")
	}
	defer f.Close()

	var opts []schema.Option
	if s.Release != "" {
		opts = append(opts, schema.WithRelease(s.Release))
	}
	reg, err := schema.Load(f, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "load schema %s", s.SchemaFile)
	}
	return reg, nil
}

// Logger builds a production logger at the configured level.
func (s *Settings) Logger() (*zap.Logger, error) {
	lc := zap.NewProductionConfig()
	lc.Level = zap.NewAtomicLevelAt(s.level)
	return lc.Build()
}

// Level returns the configured log level.
func (s *Settings) Level() zapcore.Level {
	return s.level
}

// Algorithm returns the configured compression algorithm.
func (s *Settings) Algorithm() compression.Algorithm {
	return s.algorithm
}
