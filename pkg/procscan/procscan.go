// Package procscan detects whether the game is currently running. Archiving
// the journal while the game is writing to it produces torn last entries, so
// the export command refuses to run against a live game unless forced.
//
// Detection shells out to the platform's process lister (tasklist on Windows,
// pgrep elsewhere). A scan that cannot run is a hint, not a failure: the
// caller warns and continues rather than blocking the export on a missing
// tool.
package procscan

import (
	"context"
	"encoding/csv"
	"fmt"
	"os/exec"
	"strings"

	"github.com/paulschiretz/ed-backup/pkg/hints"
)

// ErrScanUnavailable wraps scan failures that should not abort the caller.
var ErrScanUnavailable = hints.New("process scan unavailable")

type Scanner struct {
	// commandContext allows mocking os/exec for testing scans.
	commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd
}

// NewScanner creates a new process Scanner. Pass exec.CommandContext outside
// of tests.
func NewScanner(commandContext func(ctx context.Context, name string, arg ...string) *exec.Cmd) *Scanner {
	return &Scanner{
		commandContext: commandContext,
	}
}

// Running returns the subset of names that currently have a live process.
// The match is case-insensitive on the executable name. An empty result with
// a nil error means none of the processes are running.
func (s *Scanner) Running(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	return s.platformRunning(ctx, names)
}

// parseTaskListCSV extracts the image names from `tasklist /FO CSV /NH`
// output. The first field of each record is the executable name. tasklist
// prints a plain INFO sentence instead of CSV when nothing matches; that
// parses as a one-field record and simply never matches a watched name.
func parseTaskListCSV(output string) map[string]struct{} {
	images := make(map[string]struct{})
	reader := csv.NewReader(strings.NewReader(output))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if len(record) == 0 {
			continue
		}
		image := strings.TrimSpace(record[0])
		if image == "" {
			continue
		}
		images[strings.ToLower(image)] = struct{}{}
	}
	return images
}

// scanError promotes a command failure to a soft hint with context attached.
func scanError(err error) error {
	return hints.Wrap(fmt.Errorf("%w: %v", ErrScanUnavailable, err))
}
