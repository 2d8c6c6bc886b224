package cmd_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/cmd"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// plantArchive drops an archive-shaped file into the destination. Prune only
// reads names, so the content does not matter.
func plantArchive(t *testing.T, dest, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dest, name), []byte("archive"), 0644); err != nil {
		t.Fatalf("failed to plant archive %s: %v", name, err)
	}
}

func TestRunPrune(t *testing.T) {
	t.Run("Keeps Only The Newest Archives", func(t *testing.T) {
		// Arrange
		dest := t.TempDir()
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240101_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240102_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240103_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Bindings_Backup_20240101_120000.zip")
		plantArchive(t, dest, "Journal.zip")

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		flags := map[string]any{
			"config": filepath.Join(t.TempDir(), "config.json"),
			"dest":   dest,
			"keep":   1,
			"force":  true,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err != nil {
			t.Fatalf("RunPrune failed: %v", err)
		}
		for _, gone := range []string{
			"EliteDangerous_Journal_Backup_20240101_120000.zip",
			"EliteDangerous_Journal_Backup_20240102_120000.zip",
		} {
			if _, err := os.Stat(filepath.Join(dest, gone)); !os.IsNotExist(err) {
				t.Errorf("expected outdated archive %s to be deleted", gone)
			}
		}
		for _, kept := range []string{
			"EliteDangerous_Journal_Backup_20240103_120000.zip",
			"EliteDangerous_Bindings_Backup_20240101_120000.zip",
			"Journal.zip",
		} {
			if _, err := os.Stat(filepath.Join(dest, kept)); err != nil {
				t.Errorf("expected archive %s to survive the prune: %v", kept, err)
			}
		}
	})

	t.Run("Honors The Category Selection", func(t *testing.T) {
		// Arrange
		dest := t.TempDir()
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240101_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240102_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Bindings_Backup_20240101_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Bindings_Backup_20240102_120000.zip")

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		flags := map[string]any{
			"config":     filepath.Join(t.TempDir(), "config.json"),
			"dest":       dest,
			"categories": []string{"journal"},
			"keep":       1,
			"force":      true,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err != nil {
			t.Fatalf("RunPrune failed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dest, "EliteDangerous_Journal_Backup_20240101_120000.zip")); !os.IsNotExist(err) {
			t.Error("expected the outdated journal archive to be deleted")
		}
		for _, kept := range []string{
			"EliteDangerous_Bindings_Backup_20240101_120000.zip",
			"EliteDangerous_Bindings_Backup_20240102_120000.zip",
		} {
			if _, err := os.Stat(filepath.Join(dest, kept)); err != nil {
				t.Errorf("expected bindings archive %s to survive a journal-only prune: %v", kept, err)
			}
		}
	})

	t.Run("Dry Run Deletes Nothing", func(t *testing.T) {
		// Arrange
		dest := t.TempDir()
		names := []string{
			"EliteDangerous_Journal_Backup_20240101_120000.zip",
			"EliteDangerous_Journal_Backup_20240102_120000.zip",
			"EliteDangerous_Journal_Backup_20240103_120000.zip",
		}
		for _, name := range names {
			plantArchive(t, dest, name)
		}

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		flags := map[string]any{
			"config":  filepath.Join(t.TempDir(), "config.json"),
			"dest":    dest,
			"keep":    1,
			"dry-run": true,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err != nil {
			t.Fatalf("RunPrune failed: %v", err)
		}
		for _, name := range names {
			if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
				t.Errorf("expected archive %s to survive a dry run: %v", name, err)
			}
		}
		if !strings.Contains(logBuf.String(), "[DRY RUN] DELETE") {
			t.Errorf("expected dry-run delete lines in the log, got:\n%s", logBuf.String())
		}
	})

	t.Run("A Declined Prompt Cancels The Prune", func(t *testing.T) {
		// Arrange
		dest := t.TempDir()
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240101_120000.zip")
		plantArchive(t, dest, "EliteDangerous_Journal_Backup_20240102_120000.zip")

		mockStdio(t, "n\n")

		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		defer plog.SetOutput(os.Stderr)

		flags := map[string]any{
			"config": filepath.Join(t.TempDir(), "config.json"),
			"dest":   dest,
			"keep":   1,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err != nil {
			t.Fatalf("RunPrune failed: %v", err)
		}
		if !strings.Contains(logBuf.String(), "canceled") {
			t.Errorf("expected a cancellation log line, got:\n%s", logBuf.String())
		}
		if _, err := os.Stat(filepath.Join(dest, "EliteDangerous_Journal_Backup_20240101_120000.zip")); err != nil {
			t.Errorf("expected archives to survive a declined prompt: %v", err)
		}
	})

	t.Run("Error - Retention Disabled", func(t *testing.T) {
		// Arrange
		dest := t.TempDir()

		flags := map[string]any{
			"config": filepath.Join(t.TempDir(), "config.json"),
			"dest":   dest,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err == nil || !strings.Contains(err.Error(), "retention is disabled") {
			t.Errorf("expected a retention-disabled error, got: %v", err)
		}
	})

	t.Run("Error - Destination Does Not Exist", func(t *testing.T) {
		// Arrange
		flags := map[string]any{
			"config": filepath.Join(t.TempDir(), "config.json"),
			"dest":   filepath.Join(t.TempDir(), "missing"),
			"keep":   1,
		}

		// Act
		err := cmd.RunPrune(context.Background(), flags)

		// Assert
		if err == nil || !strings.Contains(err.Error(), "does not exist") {
			t.Errorf("expected a missing-destination error, got: %v", err)
		}
	})
}
