//go:build windows

package openpath

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// open reveals the path in Explorer. explorer.exe reports a non-zero exit
// code even when the window opens fine, so only spawn failures count.
func (o *Opener) open(ctx context.Context, path string) error {
	cmd := o.commandContext(ctx, "explorer", path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil
		}
		return fmt.Errorf("explorer failed for %s: %w", path, err)
	}
	return nil
}
