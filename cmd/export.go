package cmd

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
	"github.com/paulschiretz/ed-backup/pkg/config"
	"github.com/paulschiretz/ed-backup/pkg/export"
	"github.com/paulschiretz/ed-backup/pkg/exportmetrics"
	"github.com/paulschiretz/ed-backup/pkg/flagparse"
	"github.com/paulschiretz/ed-backup/pkg/gamedirs"
	"github.com/paulschiretz/ed-backup/pkg/hints"
	"github.com/paulschiretz/ed-backup/pkg/hook"
	"github.com/paulschiretz/ed-backup/pkg/lockfile"
	"github.com/paulschiretz/ed-backup/pkg/metafile"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
	"github.com/paulschiretz/ed-backup/pkg/pathcompressionmetrics"
	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/preflight"
	"github.com/paulschiretz/ed-backup/pkg/procscan"
	"github.com/paulschiretz/ed-backup/pkg/retention"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// RunExport handles the logic for the main export execution.
func RunExport(ctx context.Context, flagMap map[string]interface{}) error {
	// Resolve the config file path; -config overrides the default location.
	configPath, _ := flagMap["config"].(string)

	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config to get the final run config.
	runConfig := config.MergeConfigWithFlags(flagparse.Export, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(config.ValidationOptions{RequireDestination: true}); err != nil {
		return err
	}

	// Set the global log level based on the final configuration.
	// Validate guarantees the level parses.
	level, _ := plog.LevelFromString(runConfig.LogLevel)
	plog.SetLevel(level)

	// Log the Summary
	runConfig.LogSummary()

	cats, err := runConfig.SelectedCategories()
	if err != nil {
		return err
	}

	// Validate guarantees format and level parse.
	format, _ := pathcompression.ParseFormat(runConfig.Compression.Format)
	compressionLevel, _ := pathcompression.ParseLevel(runConfig.Compression.Level)

	var exportMetrics exportmetrics.Metrics = &exportmetrics.NoopMetrics{}
	var compressionMetrics pathcompressionmetrics.Metrics = &pathcompressionmetrics.NoopMetrics{}
	if runConfig.Metrics {
		exportMetrics = &exportmetrics.ExportMetrics{}
		compressionMetrics = &pathcompressionmetrics.CompressionMetrics{}
	}

	exporter := export.New(gamedirs.New(), export.Options{
		Format:             format,
		Level:              compressionLevel,
		Timestamped:        runConfig.Naming.Timestamped,
		ArchiveRoot:        runConfig.Naming.ArchiveRoot,
		Manifest:           runConfig.Manifest,
		BufferSizeKB:       runConfig.Compression.BufferSizeKB,
		DryRun:             runConfig.Runtime.DryRun,
		Metrics:            exportMetrics,
		CompressionMetrics: compressionMetrics,
	})

	// Size the free-space check from what the sources hold right now. A source
	// that fails to scan is not fatal here; the export itself reports it. Such
	// a source contributes zero to the estimate, so the free-space warning can
	// undercount; acceptable for a soft check that only ever warns.
	infos := exporter.Scan(ctx, cats)
	var requiredBytes int64
	for _, info := range infos {
		if info.Err == nil && info.Exists {
			requiredBytes += info.Bytes
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Archiving files the game is still writing (journals above all) would
	// capture them mid-write, so warn first.
	if runConfig.Game.CheckProcess && !runConfig.Runtime.Force {
		watched := util.MergeAndDeduplicate(runConfig.Game.ProcessNames)
		running, err := procscan.NewScanner(exec.CommandContext).Running(ctx, watched)
		if err != nil {
			if !hints.IsHint(err) {
				return fmt.Errorf("could not check for a running game: %w", err)
			}
			plog.Warn("Could not check for a running game, continuing without the check.", "reason", err)
		}
		if len(running) > 0 {
			fmt.Printf("WARNING: The game appears to be running (%s).\n", strings.Join(running, ", "))
			fmt.Printf("Archives written now may contain files the game is still changing.\n")
			if !PromptForConfirmation("Do you want to continue anyway?", false) {
				plog.Info(buildinfo.Name + " export canceled.")
				return nil
			}
		}
	}

	// Preflight Checks
	// Ensure the destination exists (or can be created), is writable and has
	// room for the scanned sources.
	validator := preflight.NewValidator()
	pfPlan := &preflight.Plan{
		EnsureDestination: true,
		CheckWritable:     true,
		CheckFreeSpace:    true,
		RequiredBytes:     requiredBytes,
		DryRun:            runConfig.Runtime.DryRun,
	}
	if err := validator.Run(ctx, runConfig.Destination, pfPlan); err != nil {
		return fmt.Errorf("export preflight failed: %w", err)
	}

	// Acquire Lock
	// Ensure exclusive access to the destination directory. A dry run never
	// writes, so it does not need the lock either.
	if !runConfig.Runtime.DryRun {
		appID := fmt.Sprintf("%s-export:%s", buildinfo.Name, runConfig.Destination)
		lock, err := lockfile.Acquire(ctx, runConfig.Destination, appID)
		if err != nil {
			return fmt.Errorf("failed to acquire lock on destination directory: %w", err)
		}
		defer lock.Release()
	}

	executor := hook.NewExecutor(exec.CommandContext)
	hookPlan := &hook.Plan{
		Enabled:            runConfig.Hooks.Enabled,
		PreExportCommands:  runConfig.Hooks.PreExport,
		PostExportCommands: runConfig.Hooks.PostExport,
		DryRun:             runConfig.Runtime.DryRun,
	}
	if err := executor.RunPreExport(ctx, hookPlan); err != nil {
		if !hints.IsHint(err) {
			return fmt.Errorf("pre-export hook failed: %w", err)
		}
		plog.Debug("Pre-export hooks skipped", "reason", err)
	}

	// Export all selected categories. Failures are isolated per category; an
	// error here means the run itself was canceled.
	startTime := time.Now()
	results, err := exporter.ExportAll(ctx, cats, runConfig.Destination)
	if err != nil {
		return err
	}
	duration := time.Since(startTime).Round(time.Millisecond)

	// Prune outdated timestamped archives for the categories that just
	// exported successfully.
	if runConfig.Naming.Timestamped && runConfig.Retention.Keep > 0 {
		for _, res := range results {
			if res.Status != export.StatusSuccess {
				continue
			}
			err := retention.Apply(ctx, runConfig.Destination, res.Category, format, runConfig.Retention.Keep, runConfig.Runtime.DryRun, exportMetrics)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}
				plog.Warn("Could not prune outdated archives", "category", res.Category.Name, "error", err)
			}
		}
	}

	// Record the run at the destination so 'list' can report it later. Losing
	// the metadata is not worth failing a run whose archives are all written.
	if !runConfig.Runtime.DryRun {
		meta := &metafile.Content{
			AppVersion: buildinfo.Version,
			LastRun: metafile.RunInfo{
				StartedAtUTC: startTime.UTC(),
				Duration:     duration.String(),
				Results:      runResults(results),
			},
		}
		if err := metafile.Save(runConfig.Destination, meta); err != nil {
			plog.Warn("Could not write run metadata", "error", err)
		}
	}

	// Post-export hooks run even after category failures; a companion tool
	// stopped by the pre-export hooks must be started again regardless.
	if err := executor.RunPostExport(ctx, hookPlan); err != nil {
		if !hints.IsHint(err) {
			return err
		}
		plog.Debug("Post-export hooks skipped", "reason", err)
	}

	logResults(results)

	exportMetrics.LogSummary("Export metrics")
	compressionMetrics.LogSummary("Compression metrics")

	failed := 0
	for _, res := range results {
		if res.Status == export.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d categories failed to export", failed, len(results))
	}

	plog.Info(buildinfo.Name+" finished successfully.", "duration", duration)

	if runConfig.Runtime.Open && !runConfig.Runtime.DryRun {
		if err := openDestination(ctx, runConfig.Destination); err != nil {
			plog.Warn("Could not open destination folder", "error", err)
		}
	}
	return nil
}

// runResults converts exporter results into the metadata file's shape.
func runResults(results []export.Result) []metafile.RunResult {
	out := make([]metafile.RunResult, 0, len(results))
	for _, res := range results {
		rr := metafile.RunResult{
			Category: res.Category.Name,
			Status:   res.Status.String(),
			Entries:  res.Entries,
			Bytes:    res.BytesWritten,
			Reason:   res.Reason,
		}
		if res.ArchivePath != "" {
			rr.Archive = filepath.Base(res.ArchivePath)
		}
		if res.Err != nil {
			rr.Reason = res.Err.Error()
		}
		out = append(out, rr)
	}
	return out
}

// logResults prints one line per category so the outcome reads at a glance.
func logResults(results []export.Result) {
	for _, res := range results {
		switch res.Status {
		case export.StatusSuccess:
			plog.Notice("EXPORTED "+res.Category.Name,
				"archive", filepath.Base(res.ArchivePath),
				"entries", res.Entries,
				"bytes", res.BytesWritten,
				"duration", res.Duration.Round(time.Millisecond),
			)
		case export.StatusSkipped:
			plog.Notice("SKIPPED "+res.Category.Name, "reason", res.Reason)
		case export.StatusFailed:
			plog.Warn("FAILED "+res.Category.Name, "error", res.Err)
		}
	}
}
