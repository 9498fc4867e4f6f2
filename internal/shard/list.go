package shard

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"
)

var shardName = regexp.MustCompile(`^(\d{4,})\.parquet$`)

// List returns the shards in dir ordered by index, with row counts read from
// each file footer.
func List(dir string) ([]Shard, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	var shards []Shard
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := shardName.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		rows, size, err := inspect(path)
		if err != nil {
			return nil, err
		}
		shards = append(shards, Shard{Index: index, Path: path, Rows: rows, Size: size})
	}
	sort.Slice(shards, func(i, j int) bool { return shards[i].Index < shards[j].Index })
	return shards, nil
}

// NextIndex returns one past the highest shard index in dir, or zero.
func NextIndex(dir string) (int, error) {
	shards, err := List(dir)
	if err != nil {
		return 0, err
	}
	if len(shards) == 0 {
		return 0, nil
	}
	return shards[len(shards)-1].Index + 1, nil
}

func inspect(path string) (int64, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open shard: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return 0, 0, fmt.Errorf("stat shard: %w", err)
	}
	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return 0, 0, fmt.Errorf("open parquet %s: %w", path, err)
	}
	return pf.NumRows(), info.Size(), nil
}
