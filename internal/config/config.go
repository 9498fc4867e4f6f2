package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DatasetDir string `toml:"dataset_dir"`
	TempDir    string `toml:"temp_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
}

// Source describes the upstream sample stream and the slice of it to consume.
type Source struct {
	Location string `toml:"location"`
	Skip     int64  `toml:"skip"`
	TotalLen int    `toml:"total_len"`
	ShardLen int    `toml:"shard_len"`
	Resume   bool   `toml:"resume"`
}

// Convert contains the external converter settings and the option sampler
// bounds.
type Convert struct {
	Binary      string `toml:"binary"`
	TimeoutMS   int    `toml:"timeout_ms"`
	WidthMin    int    `toml:"width_min"`
	WidthMax    int    `toml:"width_max"`
	TableLen    int    `toml:"table_len"`
	Workers     int    `toml:"workers"`
	Seed        uint64 `toml:"seed"`
	ErrorMarker string `toml:"error_marker"`
	// Color and Threshold select the converter variant: when false the flag is
	// never sampled.
	Color     bool `toml:"color"`
	Threshold bool `toml:"threshold"`
}

// Acquire contains the image download settings.
type Acquire struct {
	TimeoutMS       int      `toml:"timeout_ms"`
	UserAgent       string   `toml:"user_agent"`
	MaxBytes        int64    `toml:"max_bytes"`
	CorruptedHashes []string `toml:"corrupted_hashes"`
	Extensions      []string `toml:"extensions"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Status configures the optional HTTP progress endpoint.
type Status struct {
	Bind string `toml:"bind"`
}

// Config encapsulates all configuration values for scrapscii.
//
// Configuration sections by subsystem:
//   - Paths: dataset, temp, state, and log directories
//   - Source: upstream sample stream location and window sizes
//   - Convert: external converter binary, timeouts, and sampler bounds
//   - Acquire: image download limits and validity gates
//   - Logging: log format and level
//   - Status: HTTP progress endpoint
type Config struct {
	Paths   Paths   `toml:"paths"`
	Source  Source  `toml:"source"`
	Convert Convert `toml:"convert"`
	Acquire Acquire `toml:"acquire"`
	Logging Logging `toml:"logging"`
	Status  Status  `toml:"status"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/scrapscii/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scrapscii.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories a conversion run writes to.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DatasetDir, c.Paths.TempDir, c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ConverterBinary returns the converter executable name.
func (c *Config) ConverterBinary() string {
	if binary := strings.TrimSpace(c.Convert.Binary); binary != "" {
		return binary
	}
	return defaultConverterBinary
}

// ConvertTimeout bounds a single converter invocation.
func (c *Config) ConvertTimeout() time.Duration {
	return time.Duration(c.Convert.TimeoutMS) * time.Millisecond
}

// AcquireTimeout bounds a single image download.
func (c *Config) AcquireTimeout() time.Duration {
	return time.Duration(c.Acquire.TimeoutMS) * time.Millisecond
}

// LedgerPath is the SQLite database holding run and shard history.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "ledger.db")
}

// LockPath guards the dataset directory against concurrent writers.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DatasetDir, ".scrapscii.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
