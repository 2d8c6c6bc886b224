package cmd_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/cmd"
	"github.com/paulschiretz/ed-backup/pkg/config"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// mockStdio replaces os.Stdin with the given input and swallows os.Stdout
// until the test ends, so prompt-driven code can run unattended.
func mockStdio(t *testing.T, input string) {
	t.Helper()

	rIn, wIn, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdin pipe: %v", err)
	}
	rOut, wOut, err := os.Pipe()
	if err != nil {
		t.Fatalf("failed to create stdout pipe: %v", err)
	}

	origStdin := os.Stdin
	origStdout := os.Stdout
	os.Stdin = rIn
	os.Stdout = wOut
	t.Cleanup(func() {
		os.Stdin = origStdin
		os.Stdout = origStdout
		_ = wOut.Close()
		_, _ = io.Copy(io.Discard, rOut)
	})

	go func() {
		_, _ = wIn.WriteString(input)
		_ = wIn.Close()
	}()
}

func TestRunInit(t *testing.T) {
	t.Run("Creates Config At Custom Path", func(t *testing.T) {
		// Arrange
		configPath := filepath.Join(t.TempDir(), "nested", "config.json")
		dest := t.TempDir()

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		flags := map[string]any{
			"config":     configPath,
			"dest":       dest,
			"categories": []string{"journal"},
			"keep":       2,
		}

		// Act
		err := cmd.RunInit(context.Background(), flags)

		// Assert
		if err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if loaded.Destination != dest {
			t.Errorf("expected destination %q, got %q", dest, loaded.Destination)
		}
		if len(loaded.Categories) != 1 || loaded.Categories[0] != "journal" {
			t.Errorf("expected categories [journal], got %v", loaded.Categories)
		}
		if loaded.Retention.Keep != 2 {
			t.Errorf("expected keep 2, got %d", loaded.Retention.Keep)
		}
	})

	t.Run("Preserves Existing Settings", func(t *testing.T) {
		// Arrange: an earlier init wrote destination and keep.
		configPath := filepath.Join(t.TempDir(), "config.json")
		dest := t.TempDir()

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		if err := cmd.RunInit(context.Background(), map[string]any{
			"config": configPath,
			"dest":   dest,
			"keep":   5,
		}); err != nil {
			t.Fatalf("first RunInit failed: %v", err)
		}

		// Act: a second init only changes the format.
		err := cmd.RunInit(context.Background(), map[string]any{
			"config": configPath,
			"format": "tar.gz",
		})

		// Assert
		if err != nil {
			t.Fatalf("second RunInit failed: %v", err)
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if loaded.Destination != dest {
			t.Errorf("expected destination %q to survive, got %q", dest, loaded.Destination)
		}
		if loaded.Retention.Keep != 5 {
			t.Errorf("expected keep 5 to survive, got %d", loaded.Retention.Keep)
		}
		if loaded.Compression.Format != "tar.gz" {
			t.Errorf("expected format tar.gz, got %q", loaded.Compression.Format)
		}
	})

	t.Run("Default With Force Resets Custom Settings", func(t *testing.T) {
		// Arrange
		configPath := filepath.Join(t.TempDir(), "config.json")
		dest := t.TempDir()

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		if err := cmd.RunInit(context.Background(), map[string]any{
			"config": configPath,
			"dest":   dest,
			"keep":   5,
		}); err != nil {
			t.Fatalf("first RunInit failed: %v", err)
		}

		// Act
		err := cmd.RunInit(context.Background(), map[string]any{
			"config":  configPath,
			"default": true,
			"force":   true,
		})

		// Assert
		if err != nil {
			t.Fatalf("RunInit with -default failed: %v", err)
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if loaded.Destination != "" {
			t.Errorf("expected destination to be reset, got %q", loaded.Destination)
		}
		if loaded.Retention.Keep != 0 {
			t.Errorf("expected keep to be reset, got %d", loaded.Retention.Keep)
		}
	})

	t.Run("Default Without Force Respects A Declined Prompt", func(t *testing.T) {
		// Arrange
		configPath := filepath.Join(t.TempDir(), "config.json")
		dest := t.TempDir()

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		if err := cmd.RunInit(context.Background(), map[string]any{
			"config": configPath,
			"dest":   dest,
		}); err != nil {
			t.Fatalf("first RunInit failed: %v", err)
		}

		mockStdio(t, "n\n")

		// Act
		err := cmd.RunInit(context.Background(), map[string]any{
			"config":  configPath,
			"default": true,
		})

		// Assert: declining keeps the existing file untouched.
		if err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
		loaded, err := config.Load(configPath)
		if err != nil {
			t.Fatalf("failed to load written config: %v", err)
		}
		if loaded.Destination != dest {
			t.Errorf("expected destination %q to survive the declined prompt, got %q", dest, loaded.Destination)
		}
	})

	t.Run("Dry Run Writes No File", func(t *testing.T) {
		// Arrange
		configPath := filepath.Join(t.TempDir(), "config.json")

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		// Act
		err := cmd.RunInit(context.Background(), map[string]any{
			"config":  configPath,
			"dest":    t.TempDir(),
			"dry-run": true,
		})

		// Assert
		if err != nil {
			t.Fatalf("RunInit failed: %v", err)
		}
		if _, err := os.Stat(configPath); !os.IsNotExist(err) {
			t.Error("expected the dry run to write no config file")
		}
	})

	t.Run("Error - Invalid Format", func(t *testing.T) {
		// Arrange
		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		// Act
		err := cmd.RunInit(context.Background(), map[string]any{
			"config": filepath.Join(t.TempDir(), "config.json"),
			"format": "rar",
		})

		// Assert
		if err == nil {
			t.Fatal("expected an error for an invalid format, got none")
		}
		if !strings.Contains(err.Error(), "invalid archive format") {
			t.Errorf("expected an archive format error, got: %v", err)
		}
	})
}

func TestPromptForConfirmation(t *testing.T) {
	// Helper to mock stdin/stdout and run the function
	mockPrompt := func(input string, prompt string, defaultYes bool) (bool, string) {
		// Pipe for stdin
		rIn, wIn, _ := os.Pipe()
		// Pipe for stdout
		rOut, wOut, _ := os.Pipe()

		// Save original stdin/stdout
		origStdin := os.Stdin
		origStdout := os.Stdout
		defer func() {
			os.Stdin = origStdin
			os.Stdout = origStdout
		}()

		// Redirect
		os.Stdin = rIn
		os.Stdout = wOut

		// Write input
		go func() {
			_, _ = wIn.WriteString(input)
			_ = wIn.Close()
		}()

		// Run the function
		result := cmd.PromptForConfirmation(prompt, defaultYes)

		// Close writer to read output
		_ = wOut.Close()
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, rOut)

		return result, buf.String()
	}

	tests := []struct {
		name       string
		input      string
		prompt     string
		defaultYes bool
		want       bool
		wantPrompt string
	}{
		{"Explicit Yes", "y\n", "Continue?", false, true, "Continue? [y/N]: "},
		{"Explicit No", "n\n", "Continue?", true, false, "Continue? [Y/n]: "},
		{"Default Yes (Empty)", "\n", "Sure?", true, true, "Sure? [Y/n]: "},
		{"Default No (Empty)", "\n", "Sure?", false, false, "Sure? [y/N]: "},
		{"Case Insensitive", "YES\n", "Go?", false, true, "Go? [y/N]: "},
		{"Whitespace Handling", "   y   \n", "Clean?", false, true, "Clean? [y/N]: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, output := mockPrompt(tt.input, tt.prompt, tt.defaultYes)
			if got != tt.want {
				t.Errorf("PromptForConfirmation() = %v, want %v", got, tt.want)
			}
			if !strings.Contains(output, tt.wantPrompt) {
				t.Errorf("Output = %q, want substring %q", output, tt.wantPrompt)
			}
		})
	}
}
