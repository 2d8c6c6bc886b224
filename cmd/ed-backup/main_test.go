package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// captureOutput redirects os.Stdout and os.Stderr for the duration of fn and
// returns everything written. Usage text goes to stderr, version output to
// stdout; the tests only care about the combined text.
func captureOutput(t *testing.T, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create pipe: %v", err)
	}
	origOut, origErr := os.Stdout, os.Stderr
	os.Stdout, os.Stderr = w, w
	defer func() {
		os.Stdout, os.Stderr = origOut, origErr
	}()

	fn()

	w.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read captured output: %v", err)
	}
	return string(data)
}

// quietLogs routes the global logger into a buffer so test output stays
// readable.
func quietLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	plog.SetOutput(&buf)
	t.Cleanup(func() { plog.SetOutput(os.Stderr) })
	return &buf
}

func TestRun(t *testing.T) {
	t.Run("No Arguments Prints Help", func(t *testing.T) {
		quietLogs(t)

		var err error
		output := captureOutput(t, func() {
			err = run(context.Background(), nil)
		})

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.Contains(output, "Usage:") || !strings.Contains(output, "export") {
			t.Errorf("expected the top-level usage text, got:\n%s", output)
		}
	})

	t.Run("Help Command Prints Help", func(t *testing.T) {
		quietLogs(t)

		var err error
		output := captureOutput(t, func() {
			err = run(context.Background(), []string{"help"})
		})

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.Contains(output, "Commands:") {
			t.Errorf("expected the command list in the usage text, got:\n%s", output)
		}
	})

	t.Run("Version Command Prints The Version", func(t *testing.T) {
		quietLogs(t)

		var err error
		output := captureOutput(t, func() {
			err = run(context.Background(), []string{"version"})
		})

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.Contains(output, buildinfo.Name+" version") {
			t.Errorf("expected the version line, got:\n%s", output)
		}
	})

	t.Run("Subcommand Help Is Not An Error", func(t *testing.T) {
		quietLogs(t)

		var err error
		output := captureOutput(t, func() {
			err = run(context.Background(), []string{"export", "-help"})
		})

		if err != nil {
			t.Fatalf("expected no error for -help, but got: %v", err)
		}
		if !strings.Contains(output, "export") || !strings.Contains(output, "Flags:") {
			t.Errorf("expected the export usage text, got:\n%s", output)
		}
	})

	t.Run("Unknown Command Fails", func(t *testing.T) {
		quietLogs(t)

		err := run(context.Background(), []string{"explode"})

		if err == nil || !strings.Contains(err.Error(), "invalid command") {
			t.Errorf("expected an invalid command error, got: %v", err)
		}
	})

	t.Run("Invalid Flag Value Fails", func(t *testing.T) {
		quietLogs(t)

		var err error
		captureOutput(t, func() {
			err = run(context.Background(), []string{"prune", "-keep=banana"})
		})

		if err == nil {
			t.Error("expected an error for a malformed flag value, but got nil")
		}
	})

	t.Run("List Command Dispatches", func(t *testing.T) {
		// Point every user directory at a sandbox so the run cannot touch
		// real game data or a real config file.
		home := t.TempDir()
		t.Setenv("HOME", home)
		t.Setenv("USERPROFILE", home)
		t.Setenv("LOCALAPPDATA", filepath.Join(home, "AppData", "Local"))
		t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))

		logBuf := quietLogs(t)

		err := run(context.Background(), []string{"list"})

		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.Contains(logBuf.String(), "CATEGORY") {
			t.Errorf("expected category lines in the log, got:\n%s", logBuf.String())
		}
	})
}
