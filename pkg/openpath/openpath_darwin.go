//go:build darwin

package openpath

import (
	"context"
	"fmt"
)

// open reveals the path in Finder.
func (o *Opener) open(ctx context.Context, path string) error {
	cmd := o.commandContext(ctx, "open", path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("open failed for %s: %w", path, err)
	}
	return nil
}
