//go:build windows

package procscan

import (
	"context"
	"strings"
)

// platformRunning lists all processes once via tasklist and matches the
// watched names against the image-name column.
func (s *Scanner) platformRunning(ctx context.Context, names []string) ([]string, error) {
	cmd := s.commandContext(ctx, "tasklist", "/FO", "CSV", "/NH")
	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, scanError(err)
	}

	images := parseTaskListCSV(string(output))
	var running []string
	for _, name := range names {
		if _, ok := images[strings.ToLower(name)]; ok {
			running = append(running, name)
		}
	}
	return running, nil
}
