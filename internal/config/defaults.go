package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultDatasetDir      = "~/.local/share/scrapscii/datasets/images"
	defaultStateDir        = "~/.local/share/scrapscii/state"
	defaultLogDir          = "~/.local/share/scrapscii/logs"
	defaultTotalLen        = 256
	defaultShardLen        = 64
	defaultConverterBinary = "ascii-image-converter"
	defaultConvertTimeout  = 500
	defaultWidthMin        = 16
	defaultWidthMax        = 128
	defaultTableLen        = 16
	defaultWorkers         = 1
	defaultErrorMarker     = "error"
	defaultAcquireTimeout  = 1000
	defaultUserAgent       = "scrapscii/dev"
	defaultMaxBytes        = 16 << 20
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
	maxWorkers             = 64
)

// DefaultCorruptedHashes lists sha1 digests of placeholder images that hosts
// return instead of the real content.
var DefaultCorruptedHashes = []string{
	"4dcb57651a75abfd07fb36c70c6c5108c49bdb34",
}

// DefaultExtensions is the accepted image extension set.
var DefaultExtensions = []string{"jpeg", "jpg", "png", "bmp", "webp", "tiff", "tif", "gif"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatasetDir: defaultDatasetDir,
			TempDir:    defaultTempDir(),
			StateDir:   defaultStateDir,
			LogDir:     defaultLogDir,
		},
		Source: Source{
			TotalLen: defaultTotalLen,
			ShardLen: defaultShardLen,
			Resume:   true,
		},
		Convert: Convert{
			Binary:      defaultConverterBinary,
			TimeoutMS:   defaultConvertTimeout,
			WidthMin:    defaultWidthMin,
			WidthMax:    defaultWidthMax,
			TableLen:    defaultTableLen,
			Workers:     defaultWorkers,
			ErrorMarker: defaultErrorMarker,
			Color:       true,
			Threshold:   true,
		},
		Acquire: Acquire{
			TimeoutMS:       defaultAcquireTimeout,
			UserAgent:       defaultUserAgent,
			MaxBytes:        defaultMaxBytes,
			CorruptedHashes: append([]string(nil), DefaultCorruptedHashes...),
			Extensions:      append([]string(nil), DefaultExtensions...),
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultTempDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "scrapscii", "tmp")
	}
	return filepath.Join(os.TempDir(), "scrapscii")
}
