package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeSource(); err != nil {
		return err
	}
	c.normalizeConvert()
	c.normalizeAcquire()
	c.normalizeLogging()
	c.Status.Bind = strings.TrimSpace(c.Status.Bind)
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DatasetDir) == "" {
		c.Paths.DatasetDir = defaultDatasetDir
	}
	if c.Paths.DatasetDir, err = expandPath(c.Paths.DatasetDir); err != nil {
		return fmt.Errorf("paths.dataset_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir()
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSource() error {
	c.Source.Location = strings.TrimSpace(c.Source.Location)
	if c.Source.Location == "" {
		if value, ok := os.LookupEnv("SCRAPSCII_SOURCE"); ok {
			c.Source.Location = strings.TrimSpace(value)
		}
	}
	if IsLocalSource(c.Source.Location) {
		expanded, err := expandPath(c.Source.Location)
		if err != nil {
			return fmt.Errorf("source.location: %w", err)
		}
		c.Source.Location = expanded
	}
	if c.Source.ShardLen <= 0 {
		c.Source.ShardLen = defaultShardLen
	}
	return nil
}

func (c *Config) normalizeConvert() {
	c.Convert.Binary = strings.TrimSpace(c.Convert.Binary)
	if c.Convert.Binary == "" {
		c.Convert.Binary = defaultConverterBinary
	}
	if c.Convert.TimeoutMS <= 0 {
		c.Convert.TimeoutMS = defaultConvertTimeout
	}
	if c.Convert.TableLen <= 0 {
		c.Convert.TableLen = defaultTableLen
	}
	if c.Convert.Workers <= 0 {
		c.Convert.Workers = defaultWorkers
	}
	c.Convert.ErrorMarker = strings.ToLower(strings.TrimSpace(c.Convert.ErrorMarker))
	if c.Convert.ErrorMarker == "" {
		c.Convert.ErrorMarker = defaultErrorMarker
	}
}

func (c *Config) normalizeAcquire() {
	if c.Acquire.TimeoutMS <= 0 {
		c.Acquire.TimeoutMS = defaultAcquireTimeout
	}
	c.Acquire.UserAgent = strings.TrimSpace(c.Acquire.UserAgent)
	if c.Acquire.UserAgent == "" {
		c.Acquire.UserAgent = defaultUserAgent
	}
	if c.Acquire.MaxBytes <= 0 {
		c.Acquire.MaxBytes = defaultMaxBytes
	}
	c.Acquire.CorruptedHashes = dedupeLower(c.Acquire.CorruptedHashes, func(v string) string { return v })
	c.Acquire.Extensions = dedupeLower(c.Acquire.Extensions, func(v string) string { return strings.Trim(v, ".") })
	if len(c.Acquire.Extensions) == 0 {
		c.Acquire.Extensions = append([]string(nil), DefaultExtensions...)
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func dedupeLower(values []string, clean func(string) string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		normalized := clean(strings.ToLower(strings.TrimSpace(value)))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

// IsLocalSource reports whether a source location names a file rather than
// stdin or a remote URL.
func IsLocalSource(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" || location == "-" {
		return false
	}
	lower := strings.ToLower(location)
	return !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}
