// Package openpath reveals a directory in the desktop file browser. The open
// command uses it so "where did my archives go" is one command away.
package openpath

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

type Opener struct {
	// commandContext allows mocking os/exec for testing.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewOpener creates a new Opener. Pass exec.CommandContext outside of tests.
func NewOpener(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Opener {
	return &Opener{
		commandContext: commandContext,
	}
}

// Open shows the given directory in the platform's file browser.
func (o *Opener) Open(ctx context.Context, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("path does not exist: %s", path)
		}
		return fmt.Errorf("cannot access %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory: %s", path)
	}

	return o.open(ctx, path)
}
