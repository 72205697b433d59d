// Package config resolves fstream settings from defaults, JSONC config files
// and command-line overrides.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/calvinalkan/fstream/internal/stream"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrInvalidValue       = errors.New("invalid config value")
)

// FileName is the project config file looked up in the working directory.
const FileName = ".fstream.json"

// Log formats accepted by log_format.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the effective configuration after all layers are merged.
type Config struct {
	BufferSize  int
	LogLevel    slog.Level
	LogFormat   string
	FileMode    os.FileMode
	Lock        bool
	LockTimeout time.Duration
	Atomic      bool

	// EffectiveCwd is the absolute working directory (from -C or os.Getwd).
	EffectiveCwd string

	// Sources tracks which config files were loaded (for diagnostics).
	Sources Sources
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global   string // Path to global config if loaded, empty otherwise
	Project  string // Path to project config if loaded, empty otherwise
	Explicit string // Path to the -c/--config file if given, empty otherwise
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BufferSize: stream.DefaultBufferSize,
		LogLevel:   slog.LevelInfo,
		LogFormat:  FormatText,
		FileMode:   stream.DefaultPerm,
	}
}

// Resolve turns a workspace-relative path into an absolute one.
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.EffectiveCwd == "" {
		return path
	}

	return filepath.Join(c.EffectiveCwd, path)
}

// Fields returns the effective settings as key/value pairs in file-key
// order, formatted the way a config file spells them.
func (c Config) Fields() [][2]string {
	return [][2]string{
		{"buffer_size", strconv.Itoa(c.BufferSize)},
		{"log_level", strings.ToLower(c.LogLevel.String())},
		{"log_format", c.LogFormat},
		{"file_mode", fmt.Sprintf("%#o", uint32(c.FileMode))},
		{"lock", strconv.FormatBool(c.Lock)},
		{"lock_timeout", c.LockTimeout.String()},
		{"atomic", strconv.FormatBool(c.Atomic)},
	}
}

// Overrides holds values set on the command line. Nil fields are unset.
type Overrides struct {
	BufferSize  *int
	LogLevel    *string
	LogFormat   *string
	LockTimeout *time.Duration
}

// LoadInput holds the inputs for Load.
type LoadInput struct {
	WorkDirOverride string            // -C/--cwd flag value; if empty, os.Getwd() is used
	ConfigPath      string            // -c/--config flag value
	Overrides       Overrides         // CLI flag values
	Env             map[string]string // environment variables
}

// Load builds the configuration with the following precedence (highest wins):
// 1. Defaults
// 2. Global user config ($XDG_CONFIG_HOME/fstream/config.json or ~/.config/fstream/config.json)
// 3. Project config file (.fstream.json in the working directory, if it exists)
// 4. Explicit config file via ConfigPath (if non-empty)
// 5. CLI overrides.
func Load(input LoadInput) (Config, error) {
	workDir := input.WorkDirOverride
	if workDir == "" {
		var err error

		workDir, err = os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("cannot get working directory: %w", err)
		}
	} else if !filepath.IsAbs(workDir) {
		abs, err := filepath.Abs(workDir)
		if err != nil {
			return Config{}, fmt.Errorf("cannot resolve working directory: %w", err)
		}

		workDir = abs
	}

	cfg := Default()
	cfg.EffectiveCwd = workDir

	layer, globalFile, err := loadGlobal(input.Env)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Global = globalFile

	cfg, err = merge(cfg, layer)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, globalFile, err)
	}

	layer, projectPath, err := loadProject(workDir)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Project = projectPath

	cfg, err = merge(cfg, layer)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, projectPath, err)
	}

	layer, explicitPath, err := loadExplicit(workDir, input.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg.Sources.Explicit = explicitPath

	cfg, err = merge(cfg, layer)
	if err != nil {
		return Config{}, fmt.Errorf("%w %s: %w", ErrConfigInvalid, explicitPath, err)
	}

	cfg, err = merge(cfg, input.Overrides.layer())
	if err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// fileLayer is one config file as written. Pointers distinguish an absent
// key from an explicit zero value.
type fileLayer struct {
	BufferSize  *int    `json:"buffer_size"`
	LogLevel    *string `json:"log_level"`
	LogFormat   *string `json:"log_format"`
	FileMode    *string `json:"file_mode"`
	Lock        *bool   `json:"lock"`
	LockTimeout *string `json:"lock_timeout"`
	Atomic      *bool   `json:"atomic"`
}

func (o Overrides) layer() fileLayer {
	l := fileLayer{
		BufferSize: o.BufferSize,
		LogLevel:   o.LogLevel,
		LogFormat:  o.LogFormat,
	}

	if o.LockTimeout != nil {
		s := o.LockTimeout.String()
		l.LockTimeout = &s
	}

	return l
}

// globalPath returns the path to the global config file.
// Uses $XDG_CONFIG_HOME/fstream/config.json if set, otherwise
// ~/.config/fstream/config.json. Returns "" if neither variable is set.
func globalPath(env map[string]string) string {
	if xdgConfig := env["XDG_CONFIG_HOME"]; xdgConfig != "" {
		return filepath.Join(xdgConfig, "fstream", "config.json")
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "fstream", "config.json")
	}

	return ""
}

func loadGlobal(env map[string]string) (fileLayer, string, error) {
	path := globalPath(env)
	if path == "" {
		return fileLayer{}, "", nil
	}

	layer, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return fileLayer{}, "", err
	}

	return layer, path, nil
}

func loadProject(workDir string) (fileLayer, string, error) {
	path := filepath.Join(workDir, FileName)

	layer, loaded, err := loadFile(path, false)
	if err != nil || !loaded {
		return fileLayer{}, "", err
	}

	return layer, path, nil
}

// loadExplicit loads the file named by -c/--config. Unlike the other layers
// it must exist.
func loadExplicit(workDir, configPath string) (fileLayer, string, error) {
	if configPath == "" {
		return fileLayer{}, "", nil
	}

	path := configPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(workDir, path)
	}

	if _, err := os.Stat(path); err != nil {
		return fileLayer{}, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, configPath)
	}

	layer, _, err := loadFile(path, true)
	if err != nil {
		return fileLayer{}, "", err
	}

	return layer, path, nil
}

// loadFile reads one config file. A missing optional file is not an error.
func loadFile(path string, mustExist bool) (fileLayer, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if mustExist {
			return fileLayer{}, false, fmt.Errorf("%w: %s", ErrConfigFileRead, path)
		}

		return fileLayer{}, false, nil
	}

	layer, err := parse(data)
	if err != nil {
		return fileLayer{}, false, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}

	return layer, true, nil
}

func parse(data []byte) (fileLayer, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fileLayer{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var layer fileLayer

	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&layer); err != nil {
		return fileLayer{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return layer, nil
}

// merge applies the keys set in overlay on top of base, validating each.
func merge(base Config, overlay fileLayer) (Config, error) {
	if overlay.BufferSize != nil {
		if *overlay.BufferSize <= 0 {
			return Config{}, fmt.Errorf("%w: buffer_size must be positive, got %d", ErrInvalidValue, *overlay.BufferSize)
		}

		base.BufferSize = *overlay.BufferSize
	}

	if overlay.LogLevel != nil {
		level, err := ParseLevel(*overlay.LogLevel)
		if err != nil {
			return Config{}, err
		}

		base.LogLevel = level
	}

	if overlay.LogFormat != nil {
		switch f := strings.ToLower(*overlay.LogFormat); f {
		case FormatText, FormatJSON:
			base.LogFormat = f
		default:
			return Config{}, fmt.Errorf("%w: log_format must be %q or %q, got %q", ErrInvalidValue, FormatText, FormatJSON, *overlay.LogFormat)
		}
	}

	if overlay.FileMode != nil {
		mode, err := strconv.ParseUint(*overlay.FileMode, 8, 32)
		if err != nil || mode == 0 || mode > 0o777 {
			return Config{}, fmt.Errorf("%w: file_mode must be an octal permission like \"0644\", got %q", ErrInvalidValue, *overlay.FileMode)
		}

		base.FileMode = os.FileMode(mode)
	}

	if overlay.Lock != nil {
		base.Lock = *overlay.Lock
	}

	if overlay.LockTimeout != nil {
		d, err := time.ParseDuration(*overlay.LockTimeout)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%w: lock_timeout must be a non-negative duration, got %q", ErrInvalidValue, *overlay.LockTimeout)
		}

		base.LockTimeout = d
	}

	if overlay.Atomic != nil {
		base.Atomic = *overlay.Atomic
	}

	return base, nil
}

// ParseLevel parses a log level name (debug, info, warn, error).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%w: log_level must be debug, info, warn or error, got %q", ErrInvalidValue, s)
	}

	return level, nil
}
