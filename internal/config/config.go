// Package config loads the server configuration from an optional YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration. Zero-valued fields in a file keep
// their defaults.
type Config struct {
	Addr    string `yaml:"addr"`
	DB      string `yaml:"db"`
	LogFile string `yaml:"log_file"`

	TokenTTL        time.Duration `yaml:"token_ttl"`
	OverdueInterval time.Duration `yaml:"overdue_interval"`

	Login LoginLimit `yaml:"login"`
	Photo PhotoLimit `yaml:"photo"`
	Admin Bootstrap  `yaml:"admin"`
}

// LoginLimit rate-limits login attempts per client address.
type LoginLimit struct {
	PerMinute float64 `yaml:"per_minute"`
	Burst     int     `yaml:"burst"`
}

// PhotoLimit bounds uploaded item photos.
type PhotoLimit struct {
	MaxBytes     int64 `yaml:"max_bytes"`
	MaxDimension int   `yaml:"max_dimension"`
}

// Bootstrap describes the first administrator, created when the user
// collection is empty. An empty password means one is generated and logged.
type Bootstrap struct {
	Name     string `yaml:"name"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		DB:              "inventario.db",
		TokenTTL:        7 * 24 * time.Hour,
		OverdueInterval: time.Hour,
		Login:           LoginLimit{PerMinute: 10, Burst: 5},
		Photo:           PhotoLimit{MaxBytes: 10 << 20, MaxDimension: 1024},
		Admin:           Bootstrap{Name: "Administrador", Email: "admin@inventario.local"},
	}
}

// Load reads path over the defaults. A missing file is not an error when
// path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := cfg.decode(data); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects values the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("addr must not be empty")
	case c.DB == "":
		return errors.New("db must not be empty")
	case c.TokenTTL <= 0:
		return errors.New("token_ttl must be positive")
	case c.OverdueInterval <= 0:
		return errors.New("overdue_interval must be positive")
	case c.Login.PerMinute <= 0 || c.Login.Burst <= 0:
		return errors.New("login limits must be positive")
	case c.Photo.MaxBytes <= 0 || c.Photo.MaxDimension <= 0:
		return errors.New("photo limits must be positive")
	}
	return nil
}
