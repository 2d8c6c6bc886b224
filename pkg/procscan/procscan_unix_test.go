//go:build !windows

package procscan_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/pkg/hints"
	"github.com/paulschiretz/ed-backup/pkg/procscan"
)

// TestHelperProcess stands in for pgrep. The exit code depends on the
// requested pattern: 0 (found) for the running game, 1 (no match) for
// anything else, 2 (failure) for the broken-scan marker.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, arg := range args {
		if arg == "--" {
			args = args[i+1:]
			break
		}
	}
	pattern := strings.Join(args, " ")
	switch {
	case strings.Contains(pattern, "EliteDangerous64.exe"):
		os.Exit(0)
	case strings.Contains(pattern, "broken-scan"):
		os.Exit(2)
	default:
		os.Exit(1)
	}
}

// mockCommandContext reroutes pgrep invocations into the helper process,
// passing the search pattern through.
func mockCommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", name}
	cs = append(cs, arg...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestRunning(t *testing.T) {
	t.Run("Detects Running Process", func(t *testing.T) {
		scanner := procscan.NewScanner(mockCommandContext)

		running, err := scanner.Running(context.Background(), []string{"EliteDangerous64.exe", "EDLaunch.exe"})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(running) != 1 || running[0] != "EliteDangerous64.exe" {
			t.Errorf("expected exactly EliteDangerous64.exe to be running, got %v", running)
		}
	})

	t.Run("No Processes Running", func(t *testing.T) {
		scanner := procscan.NewScanner(mockCommandContext)

		running, err := scanner.Running(context.Background(), []string{"EDLaunch.exe"})
		if err != nil {
			t.Fatalf("expected no error for a clean negative, got: %v", err)
		}
		if len(running) != 0 {
			t.Errorf("expected no running processes, got %v", running)
		}
	})

	t.Run("Empty Watchlist", func(t *testing.T) {
		scanner := procscan.NewScanner(mockCommandContext)

		running, err := scanner.Running(context.Background(), nil)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if running != nil {
			t.Errorf("expected nil result for empty watchlist, got %v", running)
		}
	})

	t.Run("Scan Failure Is a Hint", func(t *testing.T) {
		scanner := procscan.NewScanner(mockCommandContext)

		_, err := scanner.Running(context.Background(), []string{"broken-scan"})
		if err == nil {
			t.Fatal("expected an error for a failing scan, got none")
		}
		if !hints.IsHint(err) {
			t.Errorf("expected scan failure to be a hint, got: %v", err)
		}
		if !errors.Is(err, procscan.ErrScanUnavailable) {
			t.Errorf("expected ErrScanUnavailable in chain, got: %v", err)
		}
	})

	t.Run("Cancelled Context", func(t *testing.T) {
		scanner := procscan.NewScanner(mockCommandContext)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := scanner.Running(ctx, []string{"EliteDangerous64.exe"})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got: %v", err)
		}
	})
}
