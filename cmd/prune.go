package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
	"github.com/paulschiretz/ed-backup/pkg/config"
	"github.com/paulschiretz/ed-backup/pkg/exportmetrics"
	"github.com/paulschiretz/ed-backup/pkg/flagparse"
	"github.com/paulschiretz/ed-backup/pkg/lockfile"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/retention"
)

// RunPrune handles the logic for the prune command.
func RunPrune(ctx context.Context, flagMap map[string]interface{}) error {
	// Resolve the config file path; -config overrides the default location.
	configPath, _ := flagMap["config"].(string)

	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config.
	runConfig := config.MergeConfigWithFlags(flagparse.Prune, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(config.ValidationOptions{RequireDestination: true}); err != nil {
		return err
	}

	// Set the global log level.
	// Validate guarantees the level parses.
	level, _ := plog.LevelFromString(runConfig.LogLevel)
	plog.SetLevel(level)

	// Log the Summary
	runConfig.LogSummary()

	// NOTE: The destination needs to exist for a prune run; nothing to prune
	// otherwise, and creating it here would be surprising.
	if _, err := os.Stat(runConfig.Destination); os.IsNotExist(err) {
		return fmt.Errorf("destination path '%s' does not exist", runConfig.Destination)
	}

	if runConfig.Retention.Keep <= 0 {
		return fmt.Errorf("retention is disabled (keep is 0); set -keep or retention.keep in the config file")
	}

	cats, err := runConfig.SelectedCategories()
	if err != nil {
		return err
	}

	// Validate guarantees the format parses.
	format, _ := pathcompression.ParseFormat(runConfig.Compression.Format)

	if !runConfig.Runtime.DryRun && !runConfig.Runtime.Force {
		fmt.Printf("This operation will permanently delete outdated timestamped archives,\n")
		fmt.Printf("keeping the newest %d per category.\n", runConfig.Retention.Keep)
		if !PromptForConfirmation("Are you sure you want to continue?", false) {
			plog.Info(buildinfo.Name + " prune operation canceled.")
			return nil
		}
	}

	// Acquire Lock
	// Ensure exclusive access to the destination directory. A dry run never
	// deletes, so it does not need the lock either.
	if !runConfig.Runtime.DryRun {
		appID := fmt.Sprintf("%s-prune:%s", buildinfo.Name, runConfig.Destination)
		lock, err := lockfile.Acquire(ctx, runConfig.Destination, appID)
		if err != nil {
			return fmt.Errorf("failed to acquire lock on destination directory: %w", err)
		}
		defer lock.Release()
	}

	var pruneMetrics exportmetrics.Metrics = &exportmetrics.NoopMetrics{}
	if runConfig.Metrics {
		pruneMetrics = &exportmetrics.ExportMetrics{}
	}

	startTime := time.Now()
	failed := 0
	for _, cat := range cats {
		err := retention.Apply(ctx, runConfig.Destination, cat, format, runConfig.Retention.Keep, runConfig.Runtime.DryRun, pruneMetrics)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			plog.Warn("Could not prune outdated archives", "category", cat.Name, "error", err)
			failed++
		}
	}
	duration := time.Since(startTime).Round(time.Millisecond)

	pruneMetrics.LogSummary("Prune metrics")

	if failed > 0 {
		return fmt.Errorf("%d of %d categories failed to prune", failed, len(cats))
	}

	plog.Info(buildinfo.Name+" prune finished successfully.", "duration", duration)
	return nil
}
