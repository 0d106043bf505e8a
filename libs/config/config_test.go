package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPort(t *testing.T) {
	t.Setenv("TEST_PORT", "8083")
	p, err := Port("TEST_PORT", "1")
	if err != nil || p != "8083" {
		t.Fatalf("expected 8083, got %q (err=%v)", p, err)
	}

	t.Setenv("TEST_PORT", "99999")
	if _, err := Port("TEST_PORT", "1"); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestTypedHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "-3")
	t.Setenv("TEST_BOOL", "yes")
	t.Setenv("TEST_DURATION", "90s")
	t.Setenv("TEST_LIST", " a, ,b ")

	if got := Int("TEST_INT", 1); got != 42 {
		t.Fatalf("Int: got %d", got)
	}
	if got := Int("TEST_BAD_INT", 7); got != 7 {
		t.Fatalf("Int fallback: got %d", got)
	}
	if !Bool("TEST_BOOL", false) {
		t.Fatal("Bool: expected true")
	}
	if Bool("TEST_UNSET_BOOL", false) {
		t.Fatal("Bool: expected fallback false")
	}
	if got := Duration("TEST_DURATION", time.Second); got != 90*time.Second {
		t.Fatalf("Duration: got %s", got)
	}
	list := List("TEST_LIST", "")
	if len(list) != 2 || list[0] != "a" || list[1] != "b" {
		t.Fatalf("List: got %v", list)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("LEXCONNECT_TEST_FROM_FILE=hello\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("LEXCONNECT_TEST_FROM_FILE") })

	if err := Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := String("LEXCONNECT_TEST_FROM_FILE", ""); got != "hello" {
		t.Fatalf("expected value from .env, got %q", got)
	}

	if err := Load(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}
