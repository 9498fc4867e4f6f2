package config

import (
	"errors"
	"fmt"

	"scrapscii/internal/services"
)

// Validate ensures the configuration is usable. Failures are tagged
// services.ErrConfiguration.
func (c *Config) Validate() error {
	for _, check := range []func() error{c.validateSource, c.validateConvert, c.validateAcquire} {
		if err := check(); err != nil {
			return services.Wrap(services.ErrConfiguration, "config", "validate", "", err)
		}
	}
	return nil
}

func (c *Config) validateSource() error {
	if c.Source.Skip < 0 {
		return errors.New("source.skip must be >= 0")
	}
	if c.Source.TotalLen < 0 {
		return errors.New("source.total_len must be >= 0 (0 reads until the stream ends)")
	}
	if c.Source.ShardLen <= 0 {
		return errors.New("source.shard_len must be positive")
	}
	return nil
}

func (c *Config) validateConvert() error {
	if c.Convert.WidthMin <= 0 {
		return errors.New("convert.width_min must be positive")
	}
	if c.Convert.WidthMax < c.Convert.WidthMin {
		return fmt.Errorf("convert.width_max (%d) must be >= convert.width_min (%d)", c.Convert.WidthMax, c.Convert.WidthMin)
	}
	if c.Convert.Workers > maxWorkers {
		return fmt.Errorf("convert.workers must be <= %d", maxWorkers)
	}
	if c.Convert.TableLen <= 0 {
		return errors.New("convert.table_len must be positive")
	}
	if c.Convert.TimeoutMS <= 0 {
		return errors.New("convert.timeout_ms must be positive")
	}
	return nil
}

func (c *Config) validateAcquire() error {
	if c.Acquire.TimeoutMS <= 0 {
		return errors.New("acquire.timeout_ms must be positive")
	}
	for _, hash := range c.Acquire.CorruptedHashes {
		if len(hash) != 40 {
			return fmt.Errorf("acquire.corrupted_hashes: %q is not a sha1 hex digest", hash)
		}
	}
	return nil
}

// RequireSource reports a usable error when no sample stream was configured.
func (c *Config) RequireSource() error {
	if c.Source.Location == "" {
		return errors.New("source.location is required. Set SCRAPSCII_SOURCE, pass --source, or edit the config (create with 'scrapscii config init')")
	}
	return nil
}
