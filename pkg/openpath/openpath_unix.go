//go:build !windows && !darwin

package openpath

import (
	"context"
	"fmt"
)

// open hands the path to the desktop environment via xdg-open.
func (o *Opener) open(ctx context.Context, path string) error {
	cmd := o.commandContext(ctx, "xdg-open", path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("xdg-open failed for %s: %w", path, err)
	}
	return nil
}
