// Package config loads reader settings from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yuanying/epubspread/internal/flow"
)

// Config holds everything a reading session can be tuned with.
type Config struct {
	Layout   Layout `yaml:"layout"`
	Spread   bool   `yaml:"spread"`
	Prefetch bool   `yaml:"prefetch"`
	Log      Log    `yaml:"log"`
}

// Layout mirrors flow.Layout.
type Layout struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	FontSize   int     `yaml:"font_size"`
	LineHeight float64 `yaml:"line_height"`
	Margin     int     `yaml:"margin"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Default returns the settings used when no file is given.
func Default() *Config {
	l := flow.DefaultLayout()
	return &Config{
		Layout: Layout{
			Width:      l.Width,
			Height:     l.Height,
			FontSize:   l.FontSize,
			LineHeight: l.LineHeight,
			Margin:     l.Margin,
		},
		Spread:   true,
		Prefetch: true,
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file over the defaults. Keys the file leaves out keep
// their default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings, normalizing case in the log options.
func Validate(cfg *Config) error {
	if err := cfg.FlowLayout().Validate(); err != nil {
		return err
	}

	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn or error)", cfg.Log.Level)
	}
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)
	if cfg.Log.Format != "text" && cfg.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %q (must be 'text' or 'json')", cfg.Log.Format)
	}
	return nil
}

// FlowLayout converts the layout settings, filling zero metrics with the
// flow defaults.
func (c *Config) FlowLayout() flow.Layout {
	return flow.Layout{
		Viewport:   flow.Viewport{Width: c.Layout.Width, Height: c.Layout.Height},
		FontSize:   c.Layout.FontSize,
		LineHeight: c.Layout.LineHeight,
		Margin:     c.Layout.Margin,
	}.Normalize()
}
