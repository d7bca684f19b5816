// Package config loads CLI settings from a YAML file, TSOFFLOAD_ environment
// variables and flags, in increasing priority.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gitlab.com/tozd/go/errors"
)

const (
	EnvPrefix = "TSOFFLOAD"
	localFile = ".tsoffload.yaml"

	KeyLogLevel           = "log_level"
	KeyTheme              = "theme"
	KeyHighlightCacheSize = "highlight_cache_size"
	KeyManifest           = "manifest"
	KeyTracing            = "tracing"
)

type Config struct {
	LogLevel           string `mapstructure:"log_level"`
	Theme              string `mapstructure:"theme"`
	HighlightCacheSize int    `mapstructure:"highlight_cache_size"`
	// Manifest is an optional YAML catalog manifest loaded on top of the
	// builtin grammars.
	Manifest string `mapstructure:"manifest"`
	Tracing  bool   `mapstructure:"tracing"`
}

func Defaults() Config {
	return Config{
		LogLevel:           "info",
		Theme:              "nord",
		HighlightCacheSize: 256,
	}
}

// New returns a viper instance reading from fs with defaults and environment
// lookups installed.
func New(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	d := Defaults()
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyTheme, d.Theme)
	v.SetDefault(KeyHighlightCacheSize, d.HighlightCacheSize)
	v.SetDefault(KeyManifest, d.Manifest)
	v.SetDefault(KeyTracing, d.Tracing)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path, or the first of ./.tsoffload.yaml and
// ~/.config/tsoffload/config.yaml when path is empty. Missing default files
// are fine; a missing explicit file is not.
func Load(fs afero.Fs, v *viper.Viper, path string) (Config, error) {
	switch {
	case path != "":
		v.SetConfigFile(path)
	case fileExists(fs, localFile):
		v.SetConfigFile(localFile)
	default:
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "tsoffload"))
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, errors.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Errorf("decode config: %w", err)
	}
	if cfg.HighlightCacheSize < 0 {
		return Config{}, errors.Errorf("highlight_cache_size must not be negative, got %d", cfg.HighlightCacheSize)
	}
	return cfg, nil
}

func fileExists(fs afero.Fs, path string) bool {
	ok, err := afero.Exists(fs, path)
	return err == nil && ok
}
