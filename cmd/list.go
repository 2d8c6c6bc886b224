package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/config"
	"github.com/paulschiretz/ed-backup/pkg/export"
	"github.com/paulschiretz/ed-backup/pkg/flagparse"
	"github.com/paulschiretz/ed-backup/pkg/gamedirs"
	"github.com/paulschiretz/ed-backup/pkg/metafile"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// RunList handles the logic for the list command. It shows what each category
// would archive right now and, when a destination is configured, how the last
// export run went.
func RunList(ctx context.Context, flagMap map[string]any) error {
	// Resolve the config file path; -config overrides the default location.
	configPath, _ := flagMap["config"].(string)

	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config.
	runConfig := config.MergeConfigWithFlags(flagparse.List, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run. List works without a
	// destination; it just cannot report the last run then.
	if err := runConfig.Validate(config.ValidationOptions{}); err != nil {
		return err
	}

	// Set the global log level.
	// Validate guarantees the level parses.
	level, _ := plog.LevelFromString(runConfig.LogLevel)
	plog.SetLevel(level)

	cats, err := runConfig.SelectedCategories()
	if err != nil {
		return err
	}

	// Inspect the game's source directories.
	exporter := export.New(gamedirs.New(), export.Options{})
	infos := exporter.Scan(ctx, cats)
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, info := range infos {
		switch {
		case info.Err != nil:
			plog.Warn("CATEGORY "+info.Category.Name, "source", info.Path, "error", info.Err)
		case !info.Exists:
			plog.Notice("CATEGORY "+info.Category.Name,
				"description", info.Category.Description,
				"source", info.Path,
				"note", "no data found",
			)
		default:
			plog.Notice("CATEGORY "+info.Category.Name,
				"description", info.Category.Description,
				"source", info.Path,
				"files", info.Files,
				"bytes", info.Bytes,
			)
		}
	}

	// Report the last export run recorded at the destination.
	if runConfig.Destination == "" {
		plog.Info("No destination configured, so no previous runs to report. Set it in the config file or pass -dest.")
		return nil
	}

	meta, found, err := metafile.Load(runConfig.Destination)
	if err != nil {
		plog.Warn("Could not read run metadata from destination", "destination", runConfig.Destination, "error", err)
		return nil
	}
	if !found {
		plog.Info("No previous export run recorded at the destination.", "destination", runConfig.Destination)
		return nil
	}

	plog.Notice("LAST RUN",
		"destination", runConfig.Destination,
		"started_at_utc", meta.LastRun.StartedAtUTC.Format(time.RFC3339),
		"duration", meta.LastRun.Duration,
		"app_version", meta.AppVersion,
	)
	for _, res := range meta.LastRun.Results {
		logArgs := []interface{}{"status", res.Status}
		if res.Archive != "" {
			logArgs = append(logArgs, "archive", res.Archive, "entries", res.Entries, "bytes", res.Bytes)
		}
		if res.Reason != "" {
			logArgs = append(logArgs, "reason", res.Reason)
		}
		plog.Notice("LAST RUN "+res.Category, logArgs...)
	}
	return nil
}
