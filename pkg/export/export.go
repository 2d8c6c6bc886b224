// --- ARCHITECTURAL OVERVIEW: Per-Category Isolation ---
//
// An export run processes categories independently. Every requested category
// yields exactly one Result, in request order, and a failure in one category
// never prevents the remaining categories from being attempted. The only
// condition that stops a batch early is cancellation of the run's context.
//
// Outcomes:
//  1. Success - the category's archive was written (or, in dry-run, would
//     have been) and the Result carries its path and entry count.
//  2. Skipped - the category has no data: the source directory does not
//     exist, or it exists but holds no files. Nothing is written.
//  3. Failed  - locating succeeded but archiving did not. Result.Err keeps
//     the full wrapped chain, so callers can distinguish a permission
//     problem (errors.Is(err, fs.ErrPermission)) from other I/O failures.

// Package export turns Elite Dangerous data categories into archives at a
// destination directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/exportmetrics"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
	"github.com/paulschiretz/ed-backup/pkg/pathcompressionmetrics"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// skipReasonNoData is the single reason reported for a skipped category.
// A missing source directory and an existing-but-empty one are deliberately
// indistinguishable: either way there is no data to archive.
const skipReasonNoData = "no data found"

// Status classifies the outcome of exporting one category.
type Status int

const (
	StatusSuccess Status = iota
	StatusSkipped
	StatusFailed
)

var statusToString = map[Status]string{
	StatusSuccess: "success",
	StatusSkipped: "skipped",
	StatusFailed:  "failed",
}

func (s Status) String() string {
	if str, ok := statusToString[s]; ok {
		return str
	}
	return fmt.Sprintf("unknown_status(%d)", int(s))
}

// Result is the outcome of exporting one category.
type Result struct {
	Category category.Category
	Status   Status

	// ArchivePath is the absolute path of the written archive. Empty for
	// skips and failures; in dry-run it is the path that would have been
	// written.
	ArchivePath string

	// Entries is the number of entries in the archive (files, symlinks and
	// any synthesized manifest). In dry-run it is the prospective count.
	Entries int64

	// BytesWritten is the on-disk size of the written archive. Always zero
	// in dry-run.
	BytesWritten int64

	// Reason explains a skip in one short phrase.
	Reason string

	// Err is the cause of a failure, with its full wrapped chain intact.
	Err error

	Duration time.Duration
}

// Locator resolves a category to the absolute directory holding its data.
// It is the only seam between the exporter and the host system's layout;
// gamedirs provides the real one, tests substitute stubs.
type Locator interface {
	Locate(cat category.Category) (string, error)
}

// Options carries the knobs of an export run. The cmd layer builds it from
// the merged configuration.
type Options struct {
	Format pathcompression.Format
	Level  pathcompression.Level

	// Timestamped switches archive naming from the stable per-category name
	// to a unique name carrying the run's UTC timestamp.
	Timestamped bool

	// ArchiveRoot nests all archive content under a single top-level
	// directory named after the category.
	ArchiveRoot bool

	// Manifest appends a generated manifest.json entry to each archive.
	Manifest bool

	// BufferSizeKB sizes the compressor's I/O buffers. Non-positive values
	// fall back to the compressor's default.
	BufferSizeKB int

	DryRun bool

	// Now is the time source for timestamped naming. Nil means time.Now.
	Now func() time.Time

	// Metrics may be nil; no-op implementations are substituted.
	Metrics            exportmetrics.Metrics
	CompressionMetrics pathcompressionmetrics.Metrics
}

// Exporter archives categories. Safe for concurrent use; all per-run state
// lives on the stack.
type Exporter struct {
	locator    Locator
	compressor *pathcompression.PathCompressor
	opts       Options
	metrics    exportmetrics.Metrics
}

// New creates an Exporter with the given source locator and options.
func New(locator Locator, opts Options) *Exporter {
	m := opts.Metrics
	if m == nil {
		m = &exportmetrics.NoopMetrics{}
	}
	return &Exporter{
		locator:    locator,
		compressor: pathcompression.NewPathCompressor(opts.BufferSizeKB),
		opts:       opts,
		metrics:    m,
	}
}

func (e *Exporter) now() time.Time {
	if e.opts.Now != nil {
		return e.opts.Now()
	}
	return time.Now()
}

// ExportAll exports the given categories sequentially, in order. It always
// returns one Result per attempted category; the error is non-nil only when
// the context was cancelled, in which case the results gathered so far are
// still returned.
func (e *Exporter) ExportAll(ctx context.Context, cats []category.Category, absDestPath string) ([]Result, error) {
	results := make([]Result, 0, len(cats))
	for _, cat := range cats {
		// A failed category must not stop the batch, but a cancelled run must.
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, e.Export(ctx, cat, absDestPath))
	}
	return results, nil
}

// Export archives a single category into the destination directory and
// reports the outcome. It never returns an error; failures ride in the
// Result so batch callers keep going.
func (e *Exporter) Export(ctx context.Context, cat category.Category, absDestPath string) Result {
	start := time.Now()
	res := e.export(ctx, cat, absDestPath)
	res.Duration = time.Since(start)
	e.record(res)
	return res
}

func (e *Exporter) export(ctx context.Context, cat category.Category, absDestPath string) Result {
	res := Result{Category: cat}

	if err := ctx.Err(); err != nil {
		return e.failed(res, err)
	}

	absSourcePath, err := e.locator.Locate(cat)
	if err != nil {
		// An unresolvable source root means there is nothing to archive on
		// this machine, same as a missing directory.
		plog.Debug("Source location could not be resolved", "category", cat.Name, "error", err)
		return e.skipped(res)
	}

	fi, err := os.Stat(absSourcePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		plog.Debug("Source directory does not exist", "category", cat.Name, "source", absSourcePath)
		return e.skipped(res)
	case err != nil:
		return e.failed(res, fmt.Errorf("could not access source directory %s: %w", absSourcePath, err))
	case !fi.IsDir():
		return e.failed(res, fmt.Errorf("source path %s is not a directory", absSourcePath))
	}

	fileName := ArchiveFileName(cat, e.opts.Format, e.opts.Timestamped, e.now().UTC())
	absArchivePath := filepath.Join(absDestPath, fileName)

	plog.Info("Exporting category", "category", cat.Name, "source", absSourcePath)

	if e.opts.DryRun {
		return e.dryRun(ctx, res, absSourcePath, absArchivePath)
	}

	task := pathcompression.Task{
		AbsSourcePath:      absSourcePath,
		AbsArchiveFilePath: absArchivePath,
		Format:             e.opts.Format,
		Level:              e.opts.Level,
		Metrics:            e.opts.CompressionMetrics,
	}
	if e.opts.ArchiveRoot {
		task.ArchiveRoot = strings.ToLower(cat.ArchiveBasename)
	}
	if e.opts.Manifest {
		// The manifest needs the entry count up front, so it costs one
		// extra walk of the source tree.
		files, _, err := scanSource(ctx, absSourcePath)
		if err != nil {
			return e.failed(res, fmt.Errorf("could not scan source directory %s: %w", absSourcePath, err))
		}
		if files == 0 {
			// A manifest alone is no archive.
			plog.Debug("Source directory holds no files", "category", cat.Name, "source", absSourcePath)
			return e.skipped(res)
		}
		entry, err := manifestEntry(cat, absSourcePath, files, e.now().UTC())
		if err != nil {
			return e.failed(res, err)
		}
		task.Extra = []pathcompression.ExtraEntry{entry}
	}

	// Leftover temp archives from a crashed run would otherwise accumulate
	// next to the real ones.
	pathcompression.CleanStaleTempFiles(absDestPath)

	stats, err := e.compressor.Compress(ctx, task)
	if err != nil {
		if errors.Is(err, pathcompression.ErrNothingToCompress) {
			plog.Debug("Source directory holds no files", "category", cat.Name, "source", absSourcePath)
			return e.skipped(res)
		}
		return e.failed(res, fmt.Errorf("could not write archive for category %s: %w", cat.Name, err))
	}

	res.Status = StatusSuccess
	res.ArchivePath = absArchivePath
	res.Entries = stats.Entries()
	res.BytesWritten = stats.BytesWritten
	plog.Info("Category exported", "category", cat.Name, "archive", absArchivePath, "entries", res.Entries, "bytes", res.BytesWritten)
	return res
}

// dryRun reports what a real export would have written, without touching the
// destination.
func (e *Exporter) dryRun(ctx context.Context, res Result, absSourcePath, absArchivePath string) Result {
	files, _, err := scanSource(ctx, absSourcePath)
	if err != nil {
		return e.failed(res, fmt.Errorf("could not scan source directory %s: %w", absSourcePath, err))
	}
	if files == 0 {
		plog.Debug("Source directory holds no files", "category", res.Category.Name, "source", absSourcePath)
		return e.skipped(res)
	}
	if e.opts.Manifest {
		files++
	}

	plog.Info("[DRY RUN] Would write archive", "category", res.Category.Name, "archive", absArchivePath, "entries", files)
	res.Status = StatusSuccess
	res.ArchivePath = absArchivePath
	res.Entries = files
	return res
}

func (e *Exporter) skipped(res Result) Result {
	res.Status = StatusSkipped
	res.Reason = skipReasonNoData
	plog.Notice("Skipping category", "category", res.Category.Name, "reason", res.Reason)
	return res
}

func (e *Exporter) failed(res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	plog.Warn("Category export failed", "category", res.Category.Name, "error", err)
	return res
}

// record updates the run metrics for a finished category.
func (e *Exporter) record(res Result) {
	switch res.Status {
	case StatusSuccess:
		e.metrics.AddCategoriesExported(1)
		e.metrics.AddEntries(res.Entries)
		e.metrics.AddBytesWritten(res.BytesWritten)
	case StatusSkipped:
		e.metrics.AddCategoriesSkipped(1)
	case StatusFailed:
		e.metrics.AddCategoriesFailed(1)
	}
}
