package util

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClampScalar(t *testing.T) {
	tests := []struct {
		name     string
		value    float32
		expected float32
	}{
		{name: "inside range", value: 0.42, expected: 0.42},
		{name: "above upper bound", value: 1.02, expected: 1},
		{name: "below lower bound", value: -0.02, expected: 0},
		{name: "exactly one", value: 1, expected: 1},
		{name: "exactly zero", value: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClampScalar(tt.value); got != tt.expected {
				t.Errorf("ClampScalar(%v) = %v, expected %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestRoundScalar(t *testing.T) {
	tests := []struct {
		value    float32
		expected float32
	}{
		{value: 0.15442, expected: 0.1544},
		{value: 0.549999, expected: 0.55},
		{value: 0.005001, expected: 0.005},
		{value: 0.38300002, expected: 0.383},
		{value: 1, expected: 1},
		{value: 0, expected: 0},
	}

	for _, tt := range tests {
		if got := RoundScalar(tt.value); got != tt.expected {
			t.Errorf("RoundScalar(%v) = %v, expected %v", tt.value, got, tt.expected)
		}
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")

	if FileExists(file) {
		t.Fatalf("expected %s to not exist yet", file)
	}

	if err := os.WriteFile(file, []byte("port: 5000\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	if !FileExists(file) {
		t.Errorf("expected %s to exist", file)
	}

	if FileExists(dir) {
		t.Errorf("expected a directory to not count as a file")
	}
}

func TestEnsureDirExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")

	if err := EnsureDirExists(dir); err != nil {
		t.Fatalf("EnsureDirExists returned error: %v", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("stat created dir: %v", err)
	}
	if !info.IsDir() {
		t.Errorf("expected %s to be a directory", dir)
	}
}

func TestProcessNameOfSelf(t *testing.T) {
	name, err := ProcessName(os.Getpid())
	if err != nil {
		t.Fatalf("ProcessName returned error: %v", err)
	}
	if name == "" {
		t.Errorf("expected a non-empty executable name for the test binary")
	}
}
