package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/yuanying/epubspread/internal/flow"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "epubspread.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
layout:
  width: 800
  height: 600
  font_size: 20
  margin: 10
spread: false
log:
  level: DEBUG
  format: json
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	want := flow.Layout{
		Viewport:   flow.Viewport{Width: 800, Height: 600},
		FontSize:   20,
		LineHeight: flow.DefaultLineHeight,
		Margin:     10,
	}
	if got := cfg.FlowLayout(); got != want {
		t.Errorf("FlowLayout() = %+v, want %+v", got, want)
	}
	if cfg.Spread {
		t.Error("Spread = true, want false")
	}
	if !cfg.Prefetch {
		t.Error("Prefetch = false, want the default true")
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoad_EmptyFileIsDefault(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if *cfg != *Default() {
		t.Errorf("Load(empty) = %+v, want %+v", cfg, Default())
	}
	if cfg.FlowLayout() != flow.DefaultLayout() {
		t.Errorf("FlowLayout() = %+v, want %+v", cfg.FlowLayout(), flow.DefaultLayout())
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{name: "unknown key", content: "layout:\n  widht: 10\n"},
		{name: "bad yaml", content: "layout: [\n"},
		{name: "zero height", content: "layout:\n  height: 0\n", want: flow.ErrInvalidLayout},
		{name: "margins too wide", content: "layout:\n  width: 100\n  margin: 50\n", want: flow.ErrInvalidLayout},
		{name: "log level", content: "log:\n  level: loud\n"},
		{name: "log format", content: "log:\n  format: xml\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Load() succeeded, want error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Load() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "negative font size", modify: func(c *Config) { c.Layout.FontSize = -1 }, wantErr: true},
		{name: "negative line height", modify: func(c *Config) { c.Layout.LineHeight = -1 }, wantErr: true},
		{name: "upper-case level", modify: func(c *Config) { c.Log.Level = "WARN" }},
		{name: "empty format", modify: func(c *Config) { c.Log.Format = "" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
