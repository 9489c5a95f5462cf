package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testVectors = `{"id": 0, "vector": [1, 0, 0]}
{"id": 1, "vector": [0, 1, 0]}

{"id": 2, "vector": [0, 0, 1]}
`

// runCmd executes the root command with args and returns stdout.
func runCmd(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd("test")
	cmd.SetArgs(args)

	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))

	err := cmd.Execute()
	return out.String(), err
}

// buildTestIndex writes the test vectors and builds an index from them.
func buildTestIndex(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	input := filepath.Join(dir, "vectors.jsonl")
	if err := os.WriteFile(input, []byte(testVectors), 0644); err != nil {
		t.Fatalf("write vectors: %v", err)
	}

	path := filepath.Join(dir, "index.ann")
	if _, err := runCmd(t, "", "build", "--config", "", "-d", "3", "-i", input, "-o", path); err != nil {
		t.Fatalf("build: %v", err)
	}
	return path
}

func TestNewRootCmd(t *testing.T) {
	cmd := NewRootCmd("1.0.0")

	if cmd.Use != "angular" {
		t.Errorf("expected Use='angular', got %q", cmd.Use)
	}
	if cmd.Version != "1.0.0" {
		t.Errorf("expected Version='1.0.0', got %q", cmd.Version)
	}
}

func TestRootCmdHasFlags(t *testing.T) {
	cmd := NewRootCmd("1.0.0")

	for _, name := range []string{"config", "dimension", "verbose", "json"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag %q to exist", name)
		}
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := NewRootCmd("1.0.0")

	for _, name := range []string{"build", "query", "item", "distance", "info", "serve"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Errorf("expected subcommand %q", name)
		}
	}
}

func TestDimensionFromConfig(t *testing.T) {
	path := buildTestIndex(t)

	config := filepath.Join(t.TempDir(), "angular.yaml")
	if err := os.WriteFile(config, []byte("index:\n  dimension: 3\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out, err := runCmd(t, "", "info", "--config", config, "--index", path)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if !strings.Contains(out, "Dimension: 3") {
		t.Errorf("expected dimension 3 in %q", out)
	}
}

func TestMissingDimension(t *testing.T) {
	path := buildTestIndex(t)

	_, err := runCmd(t, "", "info", "--config", "", "--index", path)
	if err == nil || !strings.Contains(err.Error(), "dimension is required") {
		t.Errorf("expected missing dimension error, got %v", err)
	}
}

func TestInvalidConfig(t *testing.T) {
	config := filepath.Join(t.TempDir(), "angular.yaml")
	if err := os.WriteFile(config, []byte("index:\n  trees: 0\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := runCmd(t, "", "info", "--config", config, "-d", "3", "--index", "x.ann")
	if err == nil || !strings.Contains(err.Error(), "index.trees") {
		t.Errorf("expected config validation error, got %v", err)
	}
}
