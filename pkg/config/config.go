// Package config loads perp settings from YAML or TOML files.
//
// Settings are looked up in the project directory first (.perp.yaml or
// .perp.toml), then in the user's home (~/.perp/config.yaml or
// ~/.perp/config.toml). The first file found wins; without one the defaults
// apply.
package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/naoina/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Execution modes.
const (
	ModeInterpret = "interpret"
	ModeCompile   = "compile"
	ModeBoth      = "both"
)

// Color settings.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Config holds every persistent setting.
type Config struct {
	Mode        string `yaml:"mode" toml:",omitempty"`
	ShowInfix   bool   `yaml:"showInfix"`
	ShowCode    bool   `yaml:"showCode"`
	Pretty      bool   `yaml:"pretty"`
	Color       string `yaml:"color" toml:",omitempty"`
	LogLevel    string `yaml:"logLevel" toml:",omitempty"`
	CacheSize   int    `yaml:"cacheSize"`
	HistoryFile string `yaml:"historyFile" toml:",omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Mode:      ModeBoth,
		ShowInfix: true,
		ShowCode:  true,
		Color:     ColorAuto,
		LogLevel:  "warn",
		CacheSize: 64,
	}
}

// TOML keys are the Go field names, and unknown keys are rejected.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// Load reads the file at path over the defaults. The format is chosen by
// extension.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config")
	}
	defer f.Close()

	cfg := Defaults()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	case ".toml":
		err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
		if err != nil {
			// Add file name to errors that have a line number.
			if _, ok := err.(*toml.LineError); ok {
				return nil, errors.New(path + ", " + err.Error())
			}
			return nil, errors.Wrapf(err, "config: parse %s", path)
		}
	default:
		return nil, errors.Errorf("config: unsupported file type %q", filepath.Ext(path))
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, path)
	}
	return cfg, nil
}

// Discover returns the first configuration found for projectDir, and the
// path it came from. The path is empty when the defaults are used.
func Discover(projectDir string) (*Config, string, error) {
	var candidates []string
	for _, name := range []string{".perp.yaml", ".perp.yml", ".perp.toml"} {
		candidates = append(candidates, filepath.Join(projectDir, name))
	}
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"config.yaml", "config.toml"} {
			candidates = append(candidates, filepath.Join(home, ".perp", name))
		}
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg, err := Load(path)
		if err != nil {
			return nil, path, err
		}
		return cfg, path, nil
	}
	return Defaults(), "", nil
}

// Validate checks that every setting holds a legal value.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeInterpret, ModeCompile, ModeBoth:
	default:
		return errors.Errorf("invalid mode %q (want interpret, compile or both)", c.Mode)
	}
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return errors.Errorf("invalid color %q (want auto, always or never)", c.Color)
	}
	if _, err := log15.LvlFromString(c.LogLevel); err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.LogLevel)
	}
	if c.CacheSize < 0 {
		return errors.Errorf("cacheSize must not be negative, got %d", c.CacheSize)
	}
	return nil
}

// WriteTOML writes c in the format Load accepts for .toml files.
func (c *Config) WriteTOML(w io.Writer) error {
	out, err := tomlSettings.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "config: marshal")
	}
	_, err = w.Write(out)
	return err
}
