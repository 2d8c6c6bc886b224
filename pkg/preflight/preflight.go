// Package preflight provides validation checks that run before an export
// touches the destination. The checks are designed to fail early with
// friendlier errors than the ones os.MkdirAll or os.Create would produce
// halfway through a run. All checks are read-only except EnsureDestination
// and the write probe, both of which modify the destination on purpose and
// are therefore skipped in dry-run mode.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// writeProbeName is the temporary file created and removed by the write check.
const writeProbeName = ".ed-backup-writetest.tmp"

// Validator runs destination checks according to a Plan.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// Run executes the checks selected in the plan against the export destination.
func (v *Validator) Run(ctx context.Context, absDestPath string, p *Plan) error {
	// Check for cancellation at the very beginning.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := CheckDestinationAccessible(absDestPath); err != nil {
		return err
	}

	if p.EnsureDestination {
		if p.DryRun {
			if _, err := os.Stat(absDestPath); os.IsNotExist(err) {
				plog.Info("[DRY RUN] Would create destination directory", "path", absDestPath)
			}
		} else if err := EnsureDestination(absDestPath); err != nil {
			return err
		}
	}

	if p.CheckWritable {
		if p.DryRun {
			plog.Debug("[DRY RUN] Skipping destination write probe")
		} else if err := CheckDestinationWritable(absDestPath); err != nil {
			return err
		}
	}

	if p.CheckFreeSpace && p.RequiredBytes > 0 {
		checkFreeSpace(absDestPath, p.RequiredBytes)
	}

	return nil
}

// CheckDestinationAccessible performs read-only checks to ensure the export
// destination is usable. It provides more user-friendly errors than letting
// os.MkdirAll fail later.
//
// The checks include:
//  1. On Windows, verifies that the drive or network share (e.g., "Z:",
//     "\\Server\Share") exists and is not an unsafe root.
//  2. If the destination exists, confirms it is a directory.
//  3. If the destination does not exist, confirms its parent directory is
//     accessible so it can be created.
//  4. On Unix, warns when the destination looks like an unmounted drive path
//     (a directory under a typical mount location that resolves to the system
//     disk).
func CheckDestinationAccessible(destPath string) error {
	// --- 1. Check if the Volume/Drive exists, windows only ---
	if err := checkVolumeExists(destPath); err != nil {
		return err
	}

	// --- 2. Check existence and type ---
	info, err := os.Stat(destPath)
	if os.IsNotExist(err) {
		// Destination doesn't exist yet. Find the deepest existing ancestor
		// so we can tell whether MkdirAll has a chance of succeeding.
		ancestor := destPath
		for {
			parent := filepath.Dir(ancestor)
			if parent == ancestor {
				break // Hit root
			}
			if _, err := os.Stat(parent); err == nil {
				ancestor = parent
				break // Found the deepest directory that actually exists
			}
			ancestor = parent
		}

		warnIfLikelyUnmounted(ancestor)

		parentInfo, err := os.Stat(ancestor)
		if err != nil {
			return fmt.Errorf("cannot access ancestor directory %s: %w", ancestor, err)
		}
		if !parentInfo.IsDir() {
			return fmt.Errorf("ancestor path exists but is not a directory: %s", ancestor)
		}
		return nil
	} else if err != nil {
		return fmt.Errorf("cannot access destination path: %w", err)
	}

	// --- 3. The Destination Exists ---
	if !info.IsDir() {
		return fmt.Errorf("destination path exists but is not a directory: %s", destPath)
	}

	warnIfLikelyUnmounted(destPath)

	return nil
}

// EnsureDestination creates the destination directory if it does not exist.
func EnsureDestination(destPath string) error {
	if err := os.MkdirAll(destPath, util.UserWritableDirPerms); err != nil {
		return fmt.Errorf("failed to create destination directory %s: %w", destPath, err)
	}
	return nil
}

// CheckDestinationWritable ensures the destination directory is writable by
// creating and deleting a probe file. The destination must already exist.
func CheckDestinationWritable(destPath string) error {
	info, err := os.Stat(destPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("destination directory does not exist: %s", destPath)
		}
		return fmt.Errorf("cannot access destination directory %s: %w", destPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination path exists but is not a directory: %s", destPath)
	}

	probe := filepath.Join(destPath, writeProbeName)
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("destination directory %s is not writable: %w", destPath, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}

// checkFreeSpace compares the free bytes on the destination's filesystem with
// the estimated export size. A shortfall only logs a warning: the estimate is
// the uncompressed source size, so the compressed archives usually still fit.
func checkFreeSpace(destPath string, requiredBytes int64) {
	available, err := AvailableBytes(destPath)
	if err != nil {
		plog.Warn("Could not determine free space on destination", "path", destPath, "error", err)
		return
	}
	if available < requiredBytes {
		plog.Warn("Destination may not have enough free space",
			"path", destPath,
			"required_bytes", requiredBytes,
			"available_bytes", available)
		return
	}
	plog.Debug("Free space check passed", "required_bytes", requiredBytes, "available_bytes", available)
}

// AvailableBytes reports the free bytes on the filesystem holding path. If the
// path does not exist yet, the deepest existing ancestor is probed instead.
func AvailableBytes(path string) (int64, error) {
	checkPath := path
	for {
		if _, err := os.Stat(checkPath); err == nil {
			break
		}
		parent := filepath.Dir(checkPath)
		if parent == checkPath {
			return 0, fmt.Errorf("no existing ancestor found for %s", path)
		}
		checkPath = parent
	}
	return platformAvailableBytes(checkPath)
}
