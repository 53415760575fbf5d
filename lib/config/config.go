// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"filippo.io/age"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ptyshell/lib/logging"
	"github.com/bureau-foundation/ptyshell/lib/recording"
)

// EnvironmentVariable names the configuration file when --config is
// not given.
const EnvironmentVariable = "PTYSHELL_CONFIG"

// Config is the host configuration.
type Config struct {
	// Shell is the program run under the PTY. Default: $SHELL, else
	// /bin/sh.
	Shell string `yaml:"shell"`

	// Args are passed to Shell.
	Args []string `yaml:"args"`

	Log        LogConfig        `yaml:"log"`
	Recording  RecordingConfig  `yaml:"recording"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// LogConfig configures host diagnostics.
type LogConfig struct {
	// Level is debug, info, warn, or error. Default: warn, so a
	// healthy session prints nothing over the proxied program.
	Level string `yaml:"level"`

	// Format is auto, text, or json. Default: auto.
	Format string `yaml:"format"`

	// File redirects logs away from the terminal.
	File string `yaml:"file"`
}

// RecordingConfig configures session recording. Recording is off when
// Path is empty.
type RecordingConfig struct {
	Path string `yaml:"path"`

	// Compression is none, lz4, or zstd. Default: zstd.
	Compression string `yaml:"compression"`

	// RecordInput includes keystrokes in the recording.
	RecordInput bool `yaml:"record_input"`

	// Recipients are age X25519 public keys ("age1..."). When set the
	// recording is encrypted to all of them.
	Recipients []string `yaml:"recipients"`
}

// TranscriptConfig configures the plain-text transcript. Off when Path
// is empty.
type TranscriptConfig struct {
	Path       string `yaml:"path"`
	Timestamps bool   `yaml:"timestamps"`
}

// MetricsConfig configures the Prometheus endpoint. Off when Listen is
// empty.
type MetricsConfig struct {
	// Listen is a host:port for the /metrics HTTP server.
	Listen string `yaml:"listen"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return &Config{
		Shell: shell,
		Log: LogConfig{
			Level:  "warn",
			Format: string(logging.FormatAuto),
		},
		Recording: RecordingConfig{
			Compression: recording.CompressionZstd.String(),
		},
	}
}

// Load loads the file named by PTYSHELL_CONFIG, or returns Default when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads path over Default. Fields absent from the file keep
// their defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		// JSON is valid YAML once comments and trailing commas are gone.
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Expand expands ${VAR} and ${VAR:-default} in every path field.
// Names in vars take precedence over the environment.
func (c *Config) Expand(vars map[string]string) {
	c.Shell = expandVars(c.Shell, vars)
	c.Log.File = expandVars(c.Log.File, vars)
	c.Recording.Path = expandVars(c.Recording.Path, vars)
	c.Transcript.Path = expandVars(c.Transcript.Path, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Shell == "" {
		errs = append(errs, errors.New("shell is required"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch logging.Format(c.Log.Format) {
	case "", logging.FormatAuto, logging.FormatText, logging.FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q (valid: auto, text, json)", c.Log.Format))
	}
	if _, err := recording.ParseCompression(c.Recording.Compression); err != nil {
		errs = append(errs, fmt.Errorf("recording.compression: %w", err))
	}
	if _, err := c.RecordingRecipients(); err != nil {
		errs = append(errs, err)
	}
	if len(c.Recording.Recipients) > 0 && c.Recording.Path == "" {
		errs = append(errs, errors.New("recording.recipients set but recording.path is empty"))
	}
	if c.Metrics.Listen != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Listen); err != nil {
			errs = append(errs, fmt.Errorf("metrics.listen: %w", err))
		}
	}

	return errors.Join(errs...)
}

// RecordingRecipients parses Recording.Recipients.
func (c *Config) RecordingRecipients() ([]age.Recipient, error) {
	recipients := make([]age.Recipient, 0, len(c.Recording.Recipients))
	for index, key := range c.Recording.Recipients {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("recording.recipients[%d]: %w", index, err)
		}
		recipients = append(recipients, recipient)
	}
	return recipients, nil
}
