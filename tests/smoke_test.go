package main

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var binaryPath string

func TestMain(m *testing.M) {
	// Get the project root directory (parent of tests/)
	projectRoot, err := filepath.Abs("..")
	if err != nil {
		panic("Failed to get project root: " + err.Error())
	}

	// Create bin directory if it doesn't exist
	binDir := filepath.Join(projectRoot, "bin")
	if err := os.MkdirAll(binDir, 0755); err != nil {
		panic("Failed to create bin directory: " + err.Error())
	}

	binaryPath = filepath.Join(binDir, "caretrack_test")

	// Build the binary once
	cmd := exec.Command("go", "build", "-o", binaryPath, filepath.Join(projectRoot, "cmd", "caretrack"))
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	if err != nil {
		panic("Failed to build test binary: " + err.Error() + "\n" + string(output))
	}

	exitCode := m.Run()

	// Cleanup
	os.Remove(binaryPath)
	os.Exit(exitCode)
}

func TestBinaryVersion(t *testing.T) {
	cmd := exec.Command(binaryPath, "version")
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(string(output), "caretrack") {
		t.Fatalf("unexpected version output: %s", output)
	}
}

func TestBinaryHelp(t *testing.T) {
	cmd := exec.Command(binaryPath, "help")
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("help failed: %v", err)
	}
	if !strings.Contains(string(output), "Usage") {
		t.Fatalf("help output missing usage section: %s", output)
	}
}

func TestBinaryStatus(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := exec.Command(binaryPath, "status", "-data", tmpDir)
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, output)
	}
	if !strings.Contains(string(output), "Backend") {
		t.Fatalf("status output missing backend line: %s", output)
	}
	if !strings.Contains(string(output), tmpDir) {
		t.Fatalf("status output missing data directory: %s", output)
	}
}

func TestBinaryExportEmpty(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := exec.Command(binaryPath, "export", "-data", tmpDir)
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("export failed: %v\n%s", err, output)
	}
	if !strings.Contains(string(output), "appointments") {
		t.Fatalf("export output missing appointments key: %s", output)
	}
	if !strings.Contains(string(output), "medications") {
		t.Fatalf("export output missing medications key: %s", output)
	}
}

func TestBinaryPurgeRefusesWithoutTerminal(t *testing.T) {
	tmpDir := t.TempDir()

	cmd := exec.Command(binaryPath, "purge", "-data", tmpDir)
	input, _ := os.Open("/dev/null")
	cmd.Stdin = input
	defer input.Close()

	output, err := cmd.CombinedOutput()
	if err == nil {
		t.Fatal("expected purge to refuse without a terminal")
	}
	if !strings.Contains(string(output), "Refusing") {
		t.Fatalf("unexpected purge output: %s", output)
	}
}
