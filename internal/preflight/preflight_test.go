package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"scrapscii/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckConverter(t *testing.T) {
	stub := filepath.Join(t.TempDir(), "ascii-image-converter")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	if result := CheckConverter(stub); !result.Passed || result.Detail != stub {
		t.Fatalf("expected stub converter to pass, got %+v", result)
	}
	if result := CheckConverter("clearly-not-present-converter"); result.Passed {
		t.Fatal("expected missing converter to fail")
	}
}

func TestCheckSource(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "samples.jsonl")
	if err := os.WriteFile(file, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cases := []struct {
		location string
		passed   bool
	}{
		{location: file, passed: true},
		{location: "-", passed: true},
		{location: dir, passed: false},
		{location: filepath.Join(dir, "missing.jsonl"), passed: false},
		{location: "", passed: false},
		{location: srv.URL + "/samples.jsonl", passed: true},
		{location: srv.URL + "/missing", passed: false},
	}
	for _, tc := range cases {
		if got := CheckSource(context.Background(), tc.location); got.Passed != tc.passed {
			t.Fatalf("CheckSource(%q) passed=%v, want %v (%s)", tc.location, got.Passed, tc.passed, got.Detail)
		}
	}
}

func TestRunAll(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DatasetDir = t.TempDir()
	cfg.Paths.TempDir = t.TempDir()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "missing")
	cfg.Convert.Binary = "clearly-not-present-converter"

	results := RunAll(context.Background(), &cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results without a source, got %d", len(results))
	}
	failed := Failed(results)
	if len(failed) != 2 {
		t.Fatalf("expected converter and state dir to fail, got %+v", failed)
	}

	cfg.Source.Location = "-"
	if results := RunAll(context.Background(), &cfg); len(results) != 5 {
		t.Fatalf("expected source check to be added, got %d results", len(results))
	}
	if RunAll(context.Background(), nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
