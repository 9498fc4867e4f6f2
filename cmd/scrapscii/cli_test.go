package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const fakeConverterEnv = "SCRAPSCII_FAKE_CONVERTER"

// TestMain lets the test binary stand in for the external converter: convert
// invokes it with the converter arguments when fakeConverterEnv is set.
func TestMain(m *testing.M) {
	if os.Getenv(fakeConverterEnv) == "1" {
		fmt.Print(strings.Repeat("@@##%%**++==--::..\n", 4))
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type cliTestEnv struct {
	baseDir    string
	configPath string
	datasetDir string
	stateDir   string
	sourcePath string
}

type envOption func(*envSettings)

type envSettings struct {
	binary string
	source string
}

func withBinary(binary string) envOption {
	return func(s *envSettings) { s.binary = binary }
}

func withoutSource() envOption {
	return func(s *envSettings) { s.source = "" }
}

func setupCLITestEnv(t *testing.T, opts ...envOption) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	home := filepath.Join(base, "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
	t.Setenv("SCRAPSCII_SOURCE", "")

	self, err := os.Executable()
	if err != nil {
		t.Fatalf("resolve test binary: %v", err)
	}
	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		datasetDir: filepath.Join(base, "dataset"),
		stateDir:   filepath.Join(base, "state"),
		sourcePath: filepath.Join(base, "samples.jsonl"),
	}
	settings := envSettings{binary: self, source: env.sourcePath}
	for _, opt := range opts {
		opt(&settings)
	}
	if err := os.WriteFile(env.sourcePath, nil, 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	content := fmt.Sprintf(`[paths]
dataset_dir = %q
temp_dir = %q
state_dir = %q
log_dir = %q

[source]
location = %q
total_len = 0
shard_len = 4

[convert]
binary = %q
timeout_ms = 5000
width_min = 4
width_max = 8
table_len = 2
seed = 7

[logging]
level = "error"
`,
		env.datasetDir,
		filepath.Join(base, "tmp"),
		env.stateDir,
		filepath.Join(base, "logs"),
		settings.source,
		settings.binary,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliTestEnv) writeSamples(t *testing.T, lines ...string) {
	t.Helper()
	if err := os.WriteFile(e.sourcePath, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write samples: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
