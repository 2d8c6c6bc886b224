// Package hook runs user-configured shell commands around an export, for
// example stopping a companion tool that tails the journal before the
// archives are written and starting it again afterwards.
package hook

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/paulschiretz/ed-backup/pkg/hints"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

var ErrNothingToExecute = hints.New("nothing to execute")
var ErrDisabled = hints.New("hook execution is disabled")

type Executor struct {
	// commandContext allows mocking os/exec for testing hooks.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewExecutor creates a new hook Executor. Pass exec.CommandContext outside
// of tests.
func NewExecutor(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Executor {
	return &Executor{
		commandContext: commandContext,
	}
}

// RunPreExport runs the pre-export commands. A failing command aborts,
// because the remaining commands and the export itself likely depend on it.
func (e *Executor) RunPreExport(ctx context.Context, p *Plan) error {
	return e.run(ctx, "pre-export", p.PreExportCommands, p, true)
}

// RunPostExport runs the post-export commands. Failures are logged but do not
// abort: the archives are already written and the remaining commands should
// still get their chance to run.
func (e *Executor) RunPostExport(ctx context.Context, p *Plan) error {
	return e.run(ctx, "post-export", p.PostExportCommands, p, false)
}

func (e *Executor) run(ctx context.Context, phase string, commands []string, p *Plan, abortOnFailure bool) error {
	if !p.Enabled {
		return ErrDisabled
	}

	if len(commands) == 0 {
		return ErrNothingToExecute
	}

	plog.Info(fmt.Sprintf("Running %s hook commands", phase))

	for _, hookCommand := range commands {

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if p.DryRun {
			plog.Info("[DRY RUN] Would execute command", "command", hookCommand)
			continue
		}
		plog.Info("Executing command", "command", hookCommand)

		cmd := e.createCommand(ctx, hookCommand)

		// Pipe output through for visibility
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			// A canceled context makes cmd.Wait return an unspecific error, so
			// report the cancellation itself in that case.
			if ctx.Err() == context.Canceled {
				return context.Canceled
			}
			if abortOnFailure {
				return fmt.Errorf("command '%s' failed: %w", hookCommand, err)
			}
			plog.Warn("Hook command failed", "command", hookCommand, "error", err)
		}
	}
	return nil
}
