package shard

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCastJSONArray(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "spider.json")
	payload := `[
  {"caption": "a dragon", "content": "  /\\_/\\", "labels": "", "charsets": "Basic Latin", "chartypes": "Other Punctuation"},
  {"caption": "a boat", "content": "~~~", "labels": "", "charsets": "Basic Latin", "chartypes": "Math Symbol", "extra": 1}
]`
	if err := os.WriteFile(input, []byte(payload), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	shard, err := Cast(input, "")
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if shard.Path != filepath.Join(dir, "spider.parquet") || shard.Rows != 2 {
		t.Fatalf("unexpected shard %+v", shard)
	}
	rows, err := Read(shard.Path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rows[0].Caption != "a dragon" || rows[1].Content != "~~~" {
		t.Fatalf("unexpected rows %+v", rows)
	}

	if _, err := Cast(input, ""); !errors.Is(err, ErrShardExists) {
		t.Fatalf("expected ErrShardExists on second cast, got %v", err)
	}
}

func TestCastJSONLines(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "export.jsonl")
	payload := "{\"caption\": \"one\", \"content\": \"#\"}\n\n{\"caption\": \"two\", \"content\": \"@\"}\n"
	if err := os.WriteFile(input, []byte(payload), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}

	out := filepath.Join(dir, "custom.parquet")
	shard, err := Cast(input, out)
	if err != nil {
		t.Fatalf("Cast: %v", err)
	}
	if shard.Path != out || shard.Rows != 2 {
		t.Fatalf("unexpected shard %+v", shard)
	}
}

func TestCastRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	for name, payload := range map[string]string{
		"empty.json":  "   ",
		"broken.json": "{\"caption\": ",
	} {
		input := filepath.Join(dir, name)
		if err := os.WriteFile(input, []byte(payload), 0o644); err != nil {
			t.Fatalf("write input: %v", err)
		}
		if _, err := Cast(input, ""); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}
