package shard

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scrapscii/internal/record"
)

// Cast converts a JSON export of records (an array, or one object per line)
// into a parquet file. An empty out writes beside the input with the
// extension replaced.
func Cast(jsonPath, out string) (Shard, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return Shard{}, fmt.Errorf("read %s: %w", jsonPath, err)
	}
	records, err := decodeRecords(data)
	if err != nil {
		return Shard{}, fmt.Errorf("decode %s: %w", jsonPath, err)
	}
	if out == "" {
		out = strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".parquet"
	}
	if _, err := os.Stat(out); err == nil {
		return Shard{}, fmt.Errorf("%w: %s", ErrShardExists, out)
	}
	size, err := writeAtomic(out, records)
	if err != nil {
		return Shard{}, err
	}
	return Shard{Index: -1, Path: out, Rows: int64(len(records)), Size: size}, nil
}

func decodeRecords(data []byte) ([]record.Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, errors.New("empty input")
	}
	if trimmed[0] == '[' {
		var records []record.Record
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, err
		}
		return records, nil
	}

	var records []record.Record
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal(text, &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
