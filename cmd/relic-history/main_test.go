package main

import (
	"strings"
	"testing"
)

func TestExecute_Version(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{"--version"})
	if err != nil {
		t.Errorf("Expected no error for --version, got: %v", err)
	}
}

func TestExecute_Help(t *testing.T) {
	for _, args := range [][]string{
		{"--help"},
		{"serve", "--help"},
		{"index", "--help"},
		{"search", "--help"},
	} {
		if err := Execute("1.0.0", "abc123", "relic-history", args); err != nil {
			t.Errorf("Expected no error for %v, got: %v", args, err)
		}
	}
}

func TestExecute_InvalidFlag(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{"--invalid-flag"})
	if err == nil {
		t.Error("Expected error for invalid flag")
	}
}

func TestExecute_InvalidTransport(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{"serve", "--transport", "invalid"})
	if err == nil {
		t.Fatal("Expected error for invalid transport")
	}
	if !strings.Contains(err.Error(), "transport") {
		t.Errorf("Expected error about transport, got: %v", err)
	}
}

func TestExecute_SearchRequiresQuery(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{"search"})
	if err == nil {
		t.Error("Expected error for missing query")
	}
}

func TestExecute_IndexRejectsServerFlags(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{"index", "--transport", "sse"})
	if err == nil {
		t.Error("Expected error for server flag on index")
	}
}

func TestExecute_IndexInvalidProvider(t *testing.T) {
	err := Execute("1.0.0", "abc123", "relic-history", []string{
		"index", "--base-dir", t.TempDir(), "--provider", "cvs",
	})
	if err == nil || !strings.Contains(err.Error(), "provider") {
		t.Errorf("Expected provider error, got: %v", err)
	}
}

func TestRunMain_Success(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	// --help should succeed
	runMain([]string{"relic-history", "--help"}, mockExit)

	if exitCode != -1 {
		t.Errorf("Expected no exit call for --help, got exit code: %d", exitCode)
	}
}

func TestRunMain_Failure(t *testing.T) {
	exitCode := -1
	mockExit := func(code int) {
		exitCode = code
	}

	runMain([]string{"relic-history", "--invalid"}, mockExit)

	if exitCode != 1 {
		t.Errorf("Expected exit code 1 for invalid flag, got: %d", exitCode)
	}
}
