// Package config loads the optional YAML settings file. Command line flags
// override whatever it sets.
package config

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/mattchengg/susgo/internal/crypt"
	"github.com/mattchengg/susgo/internal/fus"
	"github.com/mattchengg/susgo/internal/versionfetch"
)

type Config struct {
	Model  string `yaml:"model"`
	Region string `yaml:"region"`
	IMEI   string `yaml:"imei"`
	Serial string `yaml:"serial"`

	FUSURL      string `yaml:"fusUrl"`
	DownloadURL string `yaml:"downloadUrl"`
	VersionURL  string `yaml:"versionUrl"`

	ChunkSize    int    `yaml:"chunkSize"`
	Workers      int    `yaml:"workers"`
	IMEIAttempts int    `yaml:"imeiAttempts"`
	LogLevel     string `yaml:"logLevel"`
	NoColor      bool   `yaml:"noColor"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		FUSURL:       fus.DefaultBaseURL,
		DownloadURL:  fus.DefaultDownloadURL,
		VersionURL:   versionfetch.DefaultBaseURL,
		ChunkSize:    crypt.DefaultChunkSize,
		Workers:      1,
		IMEIAttempts: 5,
		LogLevel:     "info",
	}
}

// DefaultPath is $XDG_CONFIG_HOME/susgo/config.yaml or its OS equivalent.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "susgo", "config.yaml")
}

// Load reads path over the defaults. A missing file is not an error unless
// required is set.
func Load(path string, required bool) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(err, "config: read")
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.ChunkSize <= 0 || c.ChunkSize%16 != 0 {
		return errors.Errorf("config: chunkSize %d is not a positive multiple of 16", c.ChunkSize)
	}
	if c.Workers < 1 {
		return errors.Errorf("config: workers must be at least 1, got %d", c.Workers)
	}
	if c.IMEIAttempts < 1 {
		return errors.Errorf("config: imeiAttempts must be at least 1, got %d", c.IMEIAttempts)
	}
	return nil
}
