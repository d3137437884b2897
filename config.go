package gistcache

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/always-cache/gist-cache/pkg/upstream"
)

// Cache providers selectable in the config file.
const (
	ProviderMemory = "memory"
	ProviderLRU    = "lru"
	ProviderSQLite = "sqlite"
)

// FileConfig is the YAML configuration of the gist-cache binary.
type FileConfig struct {
	Port       int           `yaml:"port" validate:"gt=0,lte=65535"`
	Upstream   string        `yaml:"upstream" validate:"required,url"`
	UserAgent  string        `yaml:"userAgent" validate:"required"`
	TTL        time.Duration `yaml:"ttl" validate:"gt=0"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	Provider   string        `yaml:"provider" validate:"oneof=memory lru sqlite"`
	MaxEntries int           `yaml:"maxEntries" validate:"required_if=Provider lru,gte=0"`
	Collapse   bool          `yaml:"collapse"`
}

var validate = validator.New()

// DefaultFileConfig returns the configuration used when no file is given.
func DefaultFileConfig() FileConfig {
	return FileConfig{
		Port:       8080,
		Upstream:   upstream.DefaultBaseURL,
		UserAgent:  upstream.DefaultUserAgent,
		TTL:        DefaultTTL,
		Timeout:    DefaultFetchTimeout,
		Provider:   ProviderMemory,
		MaxEntries: 1000,
	}
}

// LoadConfig reads the YAML file on top of the defaults and validates the result.
func LoadConfig(filename string) (FileConfig, error) {
	config := DefaultFileConfig()
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	if err := yaml.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", filename, err)
	}
	return config, config.Validate()
}

func (c FileConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
