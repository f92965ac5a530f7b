package procgit

import (
	"testing"
)

// TestParseSymrefHead_Main verifies parsing of a typical symref line.
func TestParseSymrefHead_Main(t *testing.T) {
	output := "ref: refs/heads/main\tHEAD\n" +
		"abc123def456789012345678901234567890abcd\tHEAD"
	branch, err := ParseSymrefHead(output)
	if err != nil {
		t.Fatalf("ParseSymrefHead returned error: %v", err)
	}
	if branch != "main" {
		t.Errorf("expected main, got %s", branch)
	}
}

// TestParseSymrefHead_NonDefaultBranchName verifies a branch with slashes in
// its leaf is returned whole.
func TestParseSymrefHead_NonDefaultBranchName(t *testing.T) {
	output := "ref: refs/heads/release/2.x\tHEAD"
	branch, err := ParseSymrefHead(output)
	if err != nil {
		t.Fatalf("ParseSymrefHead returned error: %v", err)
	}
	if branch != "release/2.x" {
		t.Errorf("expected release/2.x, got %s", branch)
	}
}

// TestParseSymrefHead_EmptyOutput verifies error on empty output.
func TestParseSymrefHead_EmptyOutput(t *testing.T) {
	if _, err := ParseSymrefHead(""); err == nil {
		t.Fatal("expected error for empty output, got nil")
	}
}

// TestParseSymrefHead_NoSymrefLine verifies error when the remote answered
// with plain ref listings only (no "ref:" line, e.g. a very old git).
func TestParseSymrefHead_NoSymrefLine(t *testing.T) {
	output := "abc123def456789012345678901234567890abcd\tHEAD"
	if _, err := ParseSymrefHead(output); err == nil {
		t.Fatal("expected error when no symref line is present, got nil")
	}
}
