//go:build !windows

package procscan

import (
	"context"
	"errors"
	"os/exec"
)

// platformRunning probes each name with pgrep. The game is a Windows title,
// so on Unix this catches Proton/Wine processes by executable name on a
// best-effort basis.
func (s *Scanner) platformRunning(ctx context.Context, names []string) ([]string, error) {
	var running []string
	for _, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		// -f matches against the full command line. Wine processes keep the
		// .exe name there, while the comm name pgrep matches by default is
		// truncated to 15 characters.
		cmd := s.commandContext(ctx, "pgrep", "-f", name)
		if err := cmd.Run(); err != nil {
			// Exit code 1 means "no process matched", which is a clean negative.
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			// pgrep missing or failing outright. Soft failure.
			return nil, scanError(err)
		}
		running = append(running, name)
	}
	return running, nil
}
