// Package config persists the tool's settings as a JSON file in the user's
// configuration directory and merges explicitly-set command-line flags over
// them.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/flagparse"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// ConfigFileName is the name of the configuration file.
const ConfigFileName = "config.json"

// configDirName is the per-user directory below os.UserConfigDir.
const configDirName = "ed-backup"

type CompressionConfig struct {
	Format string `json:"format"`
	Level  string `json:"level"`
	// BufferSizeKB is the I/O buffer size in kilobytes for file reads during
	// compression. Keep it between 64KB and 4MB.
	BufferSizeKB int `json:"bufferSizeKB"`
}

type NamingConfig struct {
	// Timestamped switches from one stable archive per category (overwritten
	// each run) to unique names carrying the run time.
	Timestamped bool `json:"timestamped"`
	// ArchiveRoot nests each archive's content under a single top-level
	// directory named after the category.
	ArchiveRoot bool `json:"archiveRoot"`
}

type RetentionConfig struct {
	// Keep is the number of timestamped archives to keep per category.
	// 0 disables pruning. Only meaningful with timestamped naming.
	Keep int `json:"keep"`
}

type GameConfig struct {
	// CheckProcess warns before exporting while the game is running: files
	// the game is still writing (journals above all) would be archived
	// mid-write.
	CheckProcess bool `json:"checkProcess"`
	// ProcessNames is the watchlist for the running-game check.
	ProcessNames []string `json:"processNames"`
}

type HooksConfig struct {
	Enabled bool `json:"enabled"`
	// Note: omitempty is intentionally not used so that the hook fields
	// appear in the generated config file for better discoverability.
	// PreExport is a list of shell commands to execute before any archive is written.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PreExport []string `json:"preExport"`
	// PostExport is a list of shell commands to execute after the export finishes.
	// SECURITY: These commands are executed as provided. Ensure they are from a trusted source.
	PostExport []string `json:"postExport"`
}

// RuntimeConfig carries per-invocation switches that never belong in the
// config file.
type RuntimeConfig struct {
	DryRun bool
	Force  bool
	Open   bool
}

type Config struct {
	Version     string `json:"version"`
	Destination string `json:"destination"`
	// Categories selects which categories to export. Empty means all of
	// them, in registry order.
	Categories  []string          `json:"categories"`
	LogLevel    string            `json:"logLevel"`
	Metrics     bool              `json:"metrics"`
	Manifest    bool              `json:"manifest"`
	Compression CompressionConfig `json:"compression"`
	Naming      NamingConfig      `json:"naming"`
	Retention   RetentionConfig   `json:"retention"`
	Game        GameConfig        `json:"game"`
	Hooks       HooksConfig       `json:"hooks"`
	Runtime     RuntimeConfig     `json:"-"` // Never added to config file
}

// ValidationOptions selects which checks Validate performs; commands that
// never touch the destination skip its requirement.
type ValidationOptions struct {
	RequireDestination bool
}

// NewDefault creates a Config with the defaults a fresh install starts from.
func NewDefault() Config {
	return Config{
		Version:     buildinfo.Version,
		Destination: "",         // Intentionally empty to force user configuration.
		Categories:  []string{}, // Empty selects every category.
		LogLevel:    "info",
		Metrics:     false,
		Manifest:    false, // Off so a default export of N files yields exactly N entries.
		Compression: CompressionConfig{
			Format:       "zip", // Plain zip opens everywhere, including Windows Explorer.
			Level:        "default",
			BufferSizeKB: pathcompression.DefaultBufferSizeKB,
		},
		Naming: NamingConfig{
			Timestamped: false,
			ArchiveRoot: false,
		},
		Retention: RetentionConfig{
			Keep: 0, // Disabled by default to protect archive history.
		},
		Game: GameConfig{
			CheckProcess: true,
			ProcessNames: []string{"EliteDangerous64.exe", "EDLaunch.exe"},
		},
		Hooks: HooksConfig{
			Enabled:    true, // Empty command lists are skipped, so enabled-by-default costs nothing.
			PreExport:  []string{},
			PostExport: []string{},
		},
	}
}

// DefaultPath returns the default location of the configuration file.
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(base, configDirName, ConfigFileName), nil
}

// Load reads the configuration from the given path, or from DefaultPath when
// path is empty. A missing file is a normal case and yields the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = defaultPath
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil // Config file doesn't exist, which is a normal case.
		}
		return Config{}, fmt.Errorf("error opening config file %s: %w", path, err)
	}
	defer file.Close()

	plog.Debug("Loading configuration", "path", path)
	// Start with default values, then overwrite with the file's content.
	// This makes the config loading resilient to missing fields in the JSON file.
	// NOTE: if config.Version differs from the app version we can add a migration step here.
	config := NewDefault()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if config.Version != buildinfo.Version {
		config.Version = buildinfo.Version
	}
	return config, nil
}

// Save writes the configuration to the given path (DefaultPath when empty),
// creating the directory if needed. The write goes through a temp file and
// rename so an interrupted save never truncates an existing config.
func Save(configToSave Config, path string) (string, error) {
	if path == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return "", err
		}
		path = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(path), util.UserWritableDirPerms); err != nil {
		return "", fmt.Errorf("could not create config directory %s: %w", filepath.Dir(path), err)
	}

	jsonData, err := json.MarshalIndent(configToSave, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to JSON: %w", err)
	}

	tmpF, err := os.CreateTemp(filepath.Dir(path), ConfigFileName+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("could not create temp config file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpF.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary config file", "path", tmpF.Name(), "error", err)
		}
	}()

	if _, err := tmpF.Write(jsonData); err != nil {
		tmpF.Close()
		return "", fmt.Errorf("could not write temp config file: %w", err)
	}
	if err := tmpF.Close(); err != nil {
		return "", fmt.Errorf("could not close temp config file: %w", err)
	}
	if err := os.Chmod(tmpF.Name(), util.UserWritableFilePerms); err != nil {
		return "", fmt.Errorf("could not set permissions on config file: %w", err)
	}

	if err := os.Rename(tmpF.Name(), path); err != nil {
		return "", fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	plog.Info("Successfully saved config file", "path", path)
	return path, nil
}

// Validate checks the configuration for logical errors and inconsistencies,
// and canonicalizes the destination path.
func (c *Config) Validate(opts ValidationOptions) error {
	if opts.RequireDestination && c.Destination == "" {
		return fmt.Errorf("destination path cannot be empty. Set it in the config file or pass -dest")
	}

	if c.Destination != "" {
		expanded, err := util.ExpandPath(c.Destination)
		if err != nil {
			return fmt.Errorf("could not expand destination path: %w", err)
		}
		c.Destination = filepath.Clean(expanded)
	}

	if _, err := category.Defaults().Select(c.Categories); err != nil {
		return fmt.Errorf("invalid categories in configuration: %w", err)
	}

	if _, err := pathcompression.ParseFormat(c.Compression.Format); err != nil {
		return err
	}
	if _, err := pathcompression.ParseLevel(c.Compression.Level); err != nil {
		return err
	}
	if c.Compression.BufferSizeKB <= 0 {
		return fmt.Errorf("compression.bufferSizeKB must be greater than 0")
	}

	if c.Retention.Keep < 0 {
		return fmt.Errorf("retention.keep cannot be negative")
	}

	if _, err := plog.LevelFromString(c.LogLevel); err != nil {
		return err
	}

	for _, name := range c.Game.ProcessNames {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("game.processNames cannot contain empty names")
		}
	}
	return nil
}

// SelectedCategories resolves the configured category selection against the
// registry. An empty selection means every category.
func (c *Config) SelectedCategories() ([]category.Category, error) {
	registry := category.Defaults()
	if len(c.Categories) == 0 {
		return registry.All(), nil
	}
	return registry.Select(c.Categories)
}

// LogSummary prints a user-friendly summary of the effective configuration.
func (c *Config) LogSummary() {
	categories := strings.Join(c.Categories, ", ")
	if categories == "" {
		categories = "all"
	}

	logArgs := []interface{}{
		"destination", c.Destination,
		"categories", categories,
		"format", c.Compression.Format,
		"level", c.Compression.Level,
		"buffer_size_kb", c.Compression.BufferSizeKB,
		"timestamped", c.Naming.Timestamped,
		"archive_root", c.Naming.ArchiveRoot,
		"manifest", c.Manifest,
		"log_level", c.LogLevel,
		"metrics", c.Metrics,
		"dry_run", c.Runtime.DryRun,
	}
	if c.Naming.Timestamped {
		logArgs = append(logArgs, "retention_keep", c.Retention.Keep)
	}
	if c.Game.CheckProcess {
		logArgs = append(logArgs, "watched_processes", strings.Join(c.Game.ProcessNames, ", "))
	}
	if c.Hooks.Enabled && len(c.Hooks.PreExport) > 0 {
		logArgs = append(logArgs, "pre_export_hooks", strings.Join(c.Hooks.PreExport, "; "))
	}
	if c.Hooks.Enabled && len(c.Hooks.PostExport) > 0 {
		logArgs = append(logArgs, "post_export_hooks", strings.Join(c.Hooks.PostExport, "; "))
	}
	plog.Info("Configuration loaded", logArgs...)
}

// MergeConfigWithFlags overlays the configuration values from flags on top of a base
// configuration. It iterates over the setFlags map, which contains only the flags
// explicitly provided by the user on the command line.
func MergeConfigWithFlags(command flagparse.Command, base Config, setFlags map[string]any) Config {
	merged := base

	for name, value := range setFlags {
		switch name {
		case "dest":
			merged.Destination = value.(string)
		case "categories":
			merged.Categories = value.([]string)
		case "log-level":
			merged.LogLevel = value.(string)
		case "metrics":
			merged.Metrics = value.(bool)
		case "manifest":
			merged.Manifest = value.(bool)
		case "format":
			merged.Compression.Format = value.(string)
		case "level":
			merged.Compression.Level = value.(string)
		case "buffer-size-kb":
			merged.Compression.BufferSizeKB = value.(int)
		case "timestamped":
			merged.Naming.Timestamped = value.(bool)
		case "archive-root":
			merged.Naming.ArchiveRoot = value.(bool)
		case "keep":
			merged.Retention.Keep = value.(int)
		case "check-process":
			merged.Game.CheckProcess = value.(bool)
		case "process-names":
			merged.Game.ProcessNames = value.([]string)
		case "hooks":
			merged.Hooks.Enabled = value.(bool)
		case "pre-export-hooks":
			merged.Hooks.PreExport = value.([]string)
		case "post-export-hooks":
			merged.Hooks.PostExport = value.([]string)
		case "dry-run":
			merged.Runtime.DryRun = value.(bool)
		case "force":
			merged.Runtime.Force = value.(bool)
		case "open":
			merged.Runtime.Open = value.(bool)
		case "config", "default":
			// Handled by the command layer, not part of the config shape.
		default:
			plog.Debug("unhandled flag in MergeConfigWithFlags", "flag", name, "command", command)
		}
	}
	return merged
}
