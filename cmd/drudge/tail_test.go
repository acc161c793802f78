package main

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "w.log")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
	return path
}

func TestReadLastLines(t *testing.T) {
	path := writeLog(t, "one\ntwo\nthree\nfour\n")

	lines, err := readLastLines(path, 2)
	if err != nil {
		t.Fatalf("readLastLines failed: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"three", "four"}) {
		t.Errorf("expected last two lines, got %v", lines)
	}
}

func TestReadLastLinesShortFile(t *testing.T) {
	path := writeLog(t, "only\n")

	lines, err := readLastLines(path, 20)
	if err != nil {
		t.Fatalf("readLastLines failed: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"only"}) {
		t.Errorf("expected the single line, got %v", lines)
	}
}

func TestReadLastLinesEmptyFile(t *testing.T) {
	path := writeLog(t, "")

	lines, err := readLastLines(path, 5)
	if err != nil {
		t.Fatalf("readLastLines failed: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected no lines, got %v", lines)
	}
}

func TestReadLastLinesMissingFile(t *testing.T) {
	if _, err := readLastLines(filepath.Join(t.TempDir(), "nope.log"), 5); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReadLastLinesNoTrailingNewline(t *testing.T) {
	path := writeLog(t, "one\ntwo")

	lines, err := readLastLines(path, 5)
	if err != nil {
		t.Fatalf("readLastLines failed: %v", err)
	}
	if !reflect.DeepEqual(lines, []string{"one", "two"}) {
		t.Errorf("expected both lines, got %v", lines)
	}
}
