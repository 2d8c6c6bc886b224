package cmd

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/paulschiretz/ed-backup/pkg/config"
	"github.com/paulschiretz/ed-backup/pkg/flagparse"
	"github.com/paulschiretz/ed-backup/pkg/openpath"
	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// RunOpen handles the logic for the open command.
func RunOpen(ctx context.Context, flagMap map[string]interface{}) error {
	// Resolve the config file path; -config overrides the default location.
	configPath, _ := flagMap["config"].(string)

	loadedConfig, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Merge the flag values over the loaded config.
	runConfig := config.MergeConfigWithFlags(flagparse.Open, loadedConfig, flagMap)

	// CRITICAL: Validate the config for the run
	if err := runConfig.Validate(config.ValidationOptions{RequireDestination: true}); err != nil {
		return err
	}

	// Set the global log level.
	// Validate guarantees the level parses.
	level, _ := plog.LevelFromString(runConfig.LogLevel)
	plog.SetLevel(level)

	if err := openDestination(ctx, runConfig.Destination); err != nil {
		return err
	}
	plog.Info("Opened destination folder", "path", runConfig.Destination)
	return nil
}

// openDestination reveals the given directory in the platform's file browser.
func openDestination(ctx context.Context, absDestPath string) error {
	if err := openpath.NewOpener(exec.CommandContext).Open(ctx, absDestPath); err != nil {
		return fmt.Errorf("could not open destination folder: %w", err)
	}
	return nil
}
