// Package retention prunes outdated timestamped archives from a destination
// directory.
//
// It only concerns timestamped naming: stable-named archives are overwritten
// in place on every run, so there is never more than one of them per
// category. Timestamped archives accumulate instead, and this package trims
// each category back to the newest N. The run time is parsed straight out of
// the file name, so pruning needs no side store and works on destinations
// written by other machines.
package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/export"
	"github.com/paulschiretz/ed-backup/pkg/exportmetrics"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// archiveEntry pairs an archive file name with the run time parsed out of it.
type archiveEntry struct {
	Name         string
	TimestampUTC time.Time
}

// Apply deletes the category's oldest timestamped archives so that at most
// keep remain. keep <= 0 disables pruning. Files that do not carry the
// category's timestamped name are never touched; a delete failure is logged
// and does not stop the remaining deletes.
func Apply(ctx context.Context, absDestPath string, cat category.Category, format pathcompression.Format, keep int, dryRun bool, metrics exportmetrics.Metrics) error {
	if keep <= 0 {
		plog.Debug("Retention is disabled, skipping", "category", cat.Name)
		return nil
	}
	if metrics == nil {
		metrics = &exportmetrics.NoopMetrics{}
	}

	archives, err := fetchSortedArchives(ctx, absDestPath, cat, format)
	if err != nil {
		return err
	}
	if len(archives) <= keep {
		plog.Debug("No outdated archives", "category", cat.Name, "found", len(archives), "keep", keep)
		return nil
	}

	outdated := archives[keep:]
	plog.Info("Deleting outdated archives", "category", cat.Name, "count", len(outdated), "keep", keep)

	for _, archive := range outdated {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		absArchivePath := filepath.Join(absDestPath, archive.Name)
		if dryRun {
			plog.Notice("[DRY RUN] DELETE", "path", absArchivePath)
			continue
		}

		plog.Notice("DELETE", "path", absArchivePath)
		if err := os.Remove(absArchivePath); err != nil {
			plog.Warn("Failed to delete outdated archive", "path", absArchivePath, "error", err)
			continue
		}
		metrics.AddArchivesPruned(1)
	}
	return nil
}

// fetchSortedArchives lists the category's timestamped archives in the
// destination, newest first. Everything beyond the keep count of the sorted
// list is prunable.
func fetchSortedArchives(ctx context.Context, absDestPath string, cat category.Category, format pathcompression.Format) ([]archiveEntry, error) {
	entries, err := os.ReadDir(absDestPath)
	if err != nil {
		if os.IsNotExist(err) {
			plog.Debug("Destination directory does not exist yet, nothing to prune", "path", absDestPath)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read destination directory %s: %w", absDestPath, err)
	}

	var archives []archiveEntry
	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if entry.IsDir() {
			continue
		}

		timestampUTC, err := export.ParseArchiveTime(entry.Name(), cat, format)
		if err != nil {
			// Foreign files (other categories, the metafile, stable-named
			// archives) simply don't match. A matching name with a broken
			// timestamp is worth a trace, but still off limits.
			if !errors.Is(err, export.ErrNameMismatch) {
				plog.Debug("Skipping archive with unparseable timestamp", "file", entry.Name(), "reason", err)
			}
			continue
		}
		archives = append(archives, archiveEntry{Name: entry.Name(), TimestampUTC: timestampUTC})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].TimestampUTC.After(archives[j].TimestampUTC)
	})
	return archives, nil
}
