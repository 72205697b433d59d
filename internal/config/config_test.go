package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/fstream/internal/config"
	"github.com/calvinalkan/fstream/internal/stream"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// load runs Load in an isolated workspace with no global config.
func load(t *testing.T, dir string, mutate func(*config.LoadInput)) (config.Config, error) {
	t.Helper()

	in := config.LoadInput{
		WorkDirOverride: dir,
		Env:             map[string]string{"HOME": filepath.Join(dir, "home")},
	}

	if mutate != nil {
		mutate(&in)
	}

	return config.Load(in)
}

func Test_Load_Returns_Defaults_When_No_Files_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := load(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, stream.DefaultBufferSize, cfg.BufferSize)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, config.FormatText, cfg.LogFormat)
	assert.Equal(t, stream.DefaultPerm, cfg.FileMode)
	assert.False(t, cfg.Lock)
	assert.False(t, cfg.Atomic)
	assert.Equal(t, dir, cfg.EffectiveCwd)
	assert.Equal(t, config.Sources{}, cfg.Sources)
}

func Test_Load_Reads_Project_File_With_Comments_And_Trailing_Commas(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, config.FileName), `{
		// bigger buffers for the archive volume
		"buffer_size": 65536,
		"log_level": "debug",
		"log_format": "json",
		"file_mode": "0600",
		"lock": true,
		"lock_timeout": "250ms",
		"atomic": true,
	}`)

	cfg, err := load(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 65536, cfg.BufferSize)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, config.FormatJSON, cfg.LogFormat)
	assert.Equal(t, os.FileMode(0o600), cfg.FileMode)
	assert.True(t, cfg.Lock)
	assert.Equal(t, 250*time.Millisecond, cfg.LockTimeout)
	assert.True(t, cfg.Atomic)
	assert.Equal(t, filepath.Join(dir, config.FileName), cfg.Sources.Project)
}

func Test_Load_Applies_Layers_In_Precedence_Order(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := filepath.Join(dir, "xdg")

	writeFile(t, filepath.Join(xdg, "fstream", "config.json"), `{"buffer_size": 1, "log_level": "error", "lock": true, "atomic": true}`)
	writeFile(t, filepath.Join(dir, config.FileName), `{"buffer_size": 2, "log_level": "warn", "lock": false}`)
	writeFile(t, filepath.Join(dir, "custom.json"), `{"buffer_size": 3}`)

	bufferSize := 4

	cfg, err := load(t, dir, func(in *config.LoadInput) {
		in.Env["XDG_CONFIG_HOME"] = xdg
		in.ConfigPath = "custom.json"
		in.Overrides.BufferSize = &bufferSize
	})
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.BufferSize, "flag beats every file")
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel, "project beats global")
	assert.False(t, cfg.Lock, "explicit false in project overrides global true")
	assert.True(t, cfg.Atomic, "global value survives when no later layer sets it")

	assert.Equal(t, config.Sources{
		Global:   filepath.Join(xdg, "fstream", "config.json"),
		Project:  filepath.Join(dir, config.FileName),
		Explicit: filepath.Join(dir, "custom.json"),
	}, cfg.Sources)
}

func Test_Load_Uses_Home_Config_When_XDG_Is_Unset(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "home", ".config", "fstream", "config.json"), `{"log_format": "JSON"}`)

	cfg, err := load(t, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, config.FormatJSON, cfg.LogFormat)
	assert.Equal(t, filepath.Join(dir, "home", ".config", "fstream", "config.json"), cfg.Sources.Global)
}

func Test_Load_Returns_Error_When_Explicit_Config_Is_Missing(t *testing.T) {
	t.Parallel()

	_, err := load(t, t.TempDir(), func(in *config.LoadInput) {
		in.ConfigPath = "nope.json"
	})

	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
	assert.Contains(t, err.Error(), "nope.json")
}

func Test_Load_Returns_Error_When_Config_Is_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "Syntax", content: `{"buffer_size": }`, wantErr: config.ErrConfigInvalid},
		{name: "UnknownKey", content: `{"buffer": 10}`, wantErr: config.ErrConfigInvalid},
		{name: "WrongType", content: `{"lock": "yes"}`, wantErr: config.ErrConfigInvalid},
		{name: "ZeroBufferSize", content: `{"buffer_size": 0}`, wantErr: config.ErrInvalidValue},
		{name: "NegativeBufferSize", content: `{"buffer_size": -5}`, wantErr: config.ErrInvalidValue},
		{name: "UnknownLevel", content: `{"log_level": "loud"}`, wantErr: config.ErrInvalidValue},
		{name: "UnknownFormat", content: `{"log_format": "xml"}`, wantErr: config.ErrInvalidValue},
		{name: "DecimalFileMode", content: `{"file_mode": "644x"}`, wantErr: config.ErrInvalidValue},
		{name: "FileModeTooWide", content: `{"file_mode": "01777"}`, wantErr: config.ErrInvalidValue},
		{name: "BadTimeout", content: `{"lock_timeout": "soon"}`, wantErr: config.ErrInvalidValue},
		{name: "NegativeTimeout", content: `{"lock_timeout": "-1s"}`, wantErr: config.ErrInvalidValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, config.FileName), tt.content)

			_, err := load(t, dir, nil)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Contains(t, err.Error(), config.FileName)
		})
	}
}

func Test_Load_Returns_Error_When_Override_Is_Invalid(t *testing.T) {
	t.Parallel()

	level := "verbose"

	_, err := load(t, t.TempDir(), func(in *config.LoadInput) {
		in.Overrides.LogLevel = &level
	})

	if !errors.Is(err, config.ErrInvalidValue) {
		t.Fatalf("err=%v, want ErrInvalidValue", err)
	}
}

func Test_Load_Resolves_Relative_WorkDir(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(config.LoadInput{WorkDirOverride: "some/dir", Env: map[string]string{}})
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.EffectiveCwd), "EffectiveCwd=%q", cfg.EffectiveCwd)
	assert.Equal(t, filepath.Join(cfg.EffectiveCwd, "a.bin"), cfg.Resolve("a.bin"))
	assert.Equal(t, "/abs/a.bin", cfg.Resolve("/abs/a.bin"))
}

func Test_Fields_Formats_Values_Like_Config_File(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.FileMode = 0o640
	cfg.LockTimeout = time.Second

	got := map[string]string{}
	for _, kv := range cfg.Fields() {
		got[kv[0]] = kv[1]
	}

	assert.Equal(t, map[string]string{
		"buffer_size":  "8192",
		"log_level":    "info",
		"log_format":   "text",
		"file_mode":    "0640",
		"lock":         "false",
		"lock_timeout": "1s",
		"atomic":       "false",
	}, got)
}
