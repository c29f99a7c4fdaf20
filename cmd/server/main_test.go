package main

import (
	"os"
	"testing"
)

// TestGetenv verifies default fallback behavior.
func TestGetenv(t *testing.T) {
	t.Run("returns value when set", func(t *testing.T) {
		t.Setenv("KUPE_TEST_VAR", "value")
		if got := getenv("KUPE_TEST_VAR", "default"); got != "value" {
			t.Errorf("getenv = %q, want value", got)
		}
	})

	t.Run("returns default when unset", func(t *testing.T) {
		os.Unsetenv("KUPE_TEST_VAR")
		if got := getenv("KUPE_TEST_VAR", "default"); got != "default" {
			t.Errorf("getenv = %q, want default", got)
		}
	})

	t.Run("returns default when empty", func(t *testing.T) {
		t.Setenv("KUPE_TEST_VAR", "")
		if got := getenv("KUPE_TEST_VAR", "default"); got != "default" {
			t.Errorf("getenv = %q, want default", got)
		}
	})
}

// TestGetenvInt verifies integer parsing and the fatal path for garbage.
func TestGetenvInt(t *testing.T) {
	t.Run("parses integer", func(t *testing.T) {
		t.Setenv("KUPE_TEST_INT", "42")
		if got := getenvInt("KUPE_TEST_INT", 7); got != 42 {
			t.Errorf("getenvInt = %d, want 42", got)
		}
	})

	t.Run("default when unset", func(t *testing.T) {
		os.Unsetenv("KUPE_TEST_INT")
		if got := getenvInt("KUPE_TEST_INT", 7); got != 7 {
			t.Errorf("getenvInt = %d, want 7", got)
		}
	})

	t.Run("fatal on garbage", func(t *testing.T) {
		t.Setenv("KUPE_TEST_INT", "not-a-number")

		// Intercept the fatal call
		called := false
		orig := logFatal
		logFatal = func(format string, v ...any) { called = true }
		defer func() { logFatal = orig }()

		getenvInt("KUPE_TEST_INT", 7)
		if !called {
			t.Error("expected fatal on unparseable integer")
		}
	})
}
