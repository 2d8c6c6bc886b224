package hook_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/pkg/hints"
	"github.com/paulschiretz/ed-backup/pkg/hook"
)

// TestHelperProcess is a helper for testing exec.
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
	if len(args) > 0 && strings.Contains(args[0], "fail") {
		os.Exit(1)
	}
	os.Exit(0)
}

// mockCommandContext reroutes hook commands into the test binary's helper process.
func mockCommandContext(ctx context.Context, name string, arg ...string) *exec.Cmd {
	// The platform wrapper adds `/bin/sh -c` or `cmd /C`. Extract the actual command.
	var cmdLine string
	if len(arg) > 1 && (arg[0] == "/C" || arg[0] == "-c") {
		cmdLine = strings.Join(arg[1:], " ")
	} else {
		cmdLine = name + " " + strings.Join(arg, " ")
	}

	cs := []string{"-test.run=TestHelperProcess", "--", cmdLine}
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = []string{"GO_WANT_HELPER_PROCESS=1"}
	return cmd
}

func TestExecutor(t *testing.T) {
	tests := []struct {
		name          string
		plan          *hook.Plan
		phase         string // "pre" or "post"
		expectError   bool
		errorContains string
	}{
		{
			name: "Pre-export success",
			plan: &hook.Plan{
				Enabled:           true,
				PreExportCommands: []string{"echo pre-hook-works"},
			},
			phase:       "pre",
			expectError: false,
		},
		{
			name: "Post-export success",
			plan: &hook.Plan{
				Enabled:            true,
				PostExportCommands: []string{"echo post-hook-works"},
			},
			phase:       "post",
			expectError: false,
		},
		{
			name: "Pre-export failure aborts",
			plan: &hook.Plan{
				Enabled:           true,
				PreExportCommands: []string{"fail this"},
			},
			phase:         "pre",
			expectError:   true,
			errorContains: "command 'fail this' failed",
		},
		{
			name: "Post-export failure does not abort",
			plan: &hook.Plan{
				Enabled:            true,
				PostExportCommands: []string{"fail this"},
			},
			phase:       "post",
			expectError: false,
		},
		{
			name: "Pre-export failure stops later commands",
			plan: &hook.Plan{
				Enabled:           true,
				PreExportCommands: []string{"fail first", "echo never-reached"},
			},
			phase:         "pre",
			expectError:   true,
			errorContains: "command 'fail first' failed",
		},
		{
			name: "Dry run",
			plan: &hook.Plan{
				Enabled:           true,
				PreExportCommands: []string{"fail would-not-run"},
				DryRun:            true,
			},
			phase:       "pre",
			expectError: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			executor := hook.NewExecutor(mockCommandContext)
			var err error
			if tc.phase == "pre" {
				err = executor.RunPreExport(context.Background(), tc.plan)
			} else {
				err = executor.RunPostExport(context.Background(), tc.plan)
			}

			if tc.expectError {
				if err == nil {
					t.Fatal("expected error, but got nil")
				}
				if tc.errorContains != "" && !strings.Contains(err.Error(), tc.errorContains) {
					t.Errorf("expected error to contain %q, but got: %v", tc.errorContains, err)
				}
			} else {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestExecutorSoftSkips(t *testing.T) {
	executor := hook.NewExecutor(mockCommandContext)

	t.Run("Disabled plan yields hint", func(t *testing.T) {
		err := executor.RunPreExport(context.Background(), &hook.Plan{
			Enabled:           false,
			PreExportCommands: []string{"echo x"},
		})
		if !errors.Is(err, hook.ErrDisabled) {
			t.Fatalf("expected ErrDisabled, got: %v", err)
		}
		if !hints.IsHint(err) {
			t.Error("expected ErrDisabled to be a hint")
		}
	})

	t.Run("Empty command list yields hint", func(t *testing.T) {
		err := executor.RunPostExport(context.Background(), &hook.Plan{Enabled: true})
		if !errors.Is(err, hook.ErrNothingToExecute) {
			t.Fatalf("expected ErrNothingToExecute, got: %v", err)
		}
		if !hints.IsHint(err) {
			t.Error("expected ErrNothingToExecute to be a hint")
		}
	})
}

func TestExecutorCancellation(t *testing.T) {
	executor := hook.NewExecutor(mockCommandContext)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := executor.RunPreExport(ctx, &hook.Plan{
		Enabled:           true,
		PreExportCommands: []string{"echo never-runs"},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
}
