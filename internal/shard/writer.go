package shard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"scrapscii/internal/record"
)

// ErrShardExists is returned when a shard index was already written.
var ErrShardExists = errors.New("shard already exists")

// Shard describes one persisted shard file.
type Shard struct {
	Index int    `json:"index"`
	Path  string `json:"path"`
	Rows  int64  `json:"rows"`
	Size  int64  `json:"size"`
}

// Writer persists one table of records under the given index.
type Writer interface {
	Write(index int, records []record.Record) (Shard, error)
}

// FileName returns the shard file name for index.
func FileName(index int) string {
	return fmt.Sprintf("%04d.parquet", index)
}

// ParquetWriter writes shards into Dir.
type ParquetWriter struct {
	Dir string
}

// NewParquetWriter returns a writer rooted at dir, creating it when missing.
func NewParquetWriter(dir string) (*ParquetWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	return &ParquetWriter{Dir: dir}, nil
}

// Write persists records as <index>.parquet.
func (w *ParquetWriter) Write(index int, records []record.Record) (Shard, error) {
	if index < 0 {
		return Shard{}, fmt.Errorf("invalid shard index %d", index)
	}
	target := filepath.Join(w.Dir, FileName(index))
	if _, err := os.Stat(target); err == nil {
		return Shard{}, fmt.Errorf("%w: %s", ErrShardExists, target)
	}
	size, err := writeAtomic(target, records)
	if err != nil {
		return Shard{}, err
	}
	return Shard{Index: index, Path: target, Rows: int64(len(records)), Size: size}, nil
}

// writeAtomic writes rows to a temp file beside target and hard-links it into
// place, which fails instead of replacing an existing target.
func writeAtomic(target string, records []record.Record) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".shard-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp shard: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := parquet.Write(tmp, records); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("encode shard: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("sync shard: %w", err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("stat shard: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close shard: %w", err)
	}
	if err := os.Link(tmpPath, target); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrShardExists, target)
		}
		return 0, fmt.Errorf("publish shard: %w", err)
	}
	return info.Size(), nil
}

// Read loads every record of a shard file.
func Read(path string) ([]record.Record, error) {
	rows, err := parquet.ReadFile[record.Record](path)
	if err != nil {
		return nil, fmt.Errorf("read shard %s: %w", path, err)
	}
	return rows, nil
}
