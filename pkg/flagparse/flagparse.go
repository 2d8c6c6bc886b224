package flagparse

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
)

// cliFlags holds pointers to all possible command-line flags.
// Fields are pointers so we can distinguish between "not registered for this command" (nil)
// and "registered but not set by user" (non-nil pointer to zero value).
type cliFlags struct {
	// Global
	Config   *string
	LogLevel *string
	DryRun   *bool
	Metrics  *bool

	// Shared: Export / List / Init / Prune / Open
	Dest       *string
	Categories *string

	// Shared: Export / Init (the persistent configuration shape)
	Format       *string
	Level        *string
	BufferSizeKB *int
	Timestamped  *bool
	ArchiveRoot  *bool
	Manifest     *bool
	Keep         *int
	CheckProcess *bool
	ProcessNames *string
	Hooks        *bool
	PreExport    *string
	PostExport   *string

	// Export specific
	Open *bool

	// Shared: Export / Init / Prune
	Force *bool

	// Init specific
	Default *bool
}

func registerGlobalFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Config = fs.String("config", "", "Path to the configuration file. Defaults to the per-user config directory.")
	f.LogLevel = fs.String("log-level", "info", "Set the logging level: 'debug', 'notice', 'info', 'warn', 'error'.")
	f.DryRun = fs.Bool("dry-run", false, "Show what would be done without making any changes.")
	f.Metrics = fs.Bool("metrics", false, "Enable detailed performance and file-counting metrics.")
}

func registerSelectionFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Dest = fs.String("dest", "", "Destination directory the archives are written to.")
	f.Categories = fs.String("categories", "", "Comma-separated list of categories to select. Empty selects all of them.")
}

// registerConfigFlags registers the flags that mirror the persistent
// configuration. Export and init share them: export overrides for one run,
// init bakes them into the config file.
func registerConfigFlags(fs *flag.FlagSet, f *cliFlags) {
	registerSelectionFlags(fs, f)

	f.Format = fs.String("format", "", "Archive format: 'zip', 'tar.gz', or 'tar.zst'.")
	f.Level = fs.String("level", "", "Compression level: 'default', 'fastest', 'better', 'best'.")
	f.BufferSizeKB = fs.Int("buffer-size-kb", 0, "Size of the I/O buffer in kilobytes for compression.")

	f.Timestamped = fs.Bool("timestamped", false, "Write uniquely named archives carrying the run time instead of overwriting one archive per category.")
	f.ArchiveRoot = fs.Bool("archive-root", false, "Nest each archive's content under a single top-level directory named after the category.")
	f.Manifest = fs.Bool("manifest", false, "Add a generated manifest.json entry to each archive.")
	f.Keep = fs.Int("keep", 0, "Number of timestamped archives to keep per category when pruning. 0 disables pruning.")

	f.CheckProcess = fs.Bool("check-process", true, "Warn before exporting while the game is running.")
	f.ProcessNames = fs.String("process-names", "", "Comma-separated list of process names for the running-game check.")

	f.Hooks = fs.Bool("hooks", true, "Enable pre/post export hook commands.")
	f.PreExport = fs.String("pre-export-hooks", "", "Comma-separated list of commands to run before any archive is written.")
	f.PostExport = fs.String("post-export-hooks", "", "Comma-separated list of commands to run after the export finished.")
}

func registerExportFlags(fs *flag.FlagSet, f *cliFlags) {
	registerConfigFlags(fs, f)
	f.Force = fs.Bool("force", false, "Bypass confirmation prompts, including the running-game warning.")
	f.Open = fs.Bool("open", false, "Reveal the destination folder in the file browser after a successful export.")
}

func registerInitFlags(fs *flag.FlagSet, f *cliFlags) {
	registerConfigFlags(fs, f)
	f.Force = fs.Bool("force", false, "Bypass confirmation prompts.")
	f.Default = fs.Bool("default", false, "Overwrite an existing configuration with defaults.")
}

func registerPruneFlags(fs *flag.FlagSet, f *cliFlags) {
	registerSelectionFlags(fs, f)
	f.Keep = fs.Int("keep", 0, "Number of timestamped archives to keep per category. 0 disables pruning.")
	f.Force = fs.Bool("force", false, "Bypass confirmation prompts.")
}

func registerOpenFlags(fs *flag.FlagSet, f *cliFlags) {
	f.Dest = fs.String("dest", "", "Destination directory to reveal. Defaults to the configured destination.")
}

// Parse parses the provided arguments (usually os.Args[1:]) and returns the command and config map.
func Parse(args []string) (Command, map[string]interface{}, error) {
	// Handle top-level help
	// If no arguments provided, print help and exit.
	if len(args) == 0 {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	cmdStr := strings.ToLower(args[0])

	if cmdStr == "help" || cmdStr == "-h" || cmdStr == "-help" || cmdStr == "--help" {
		fs := flag.NewFlagSet("main", flag.ContinueOnError)
		printTopLevelUsage(fs)
		return None, nil, nil
	}

	f := &cliFlags{}

	command, err := ParseCommand(cmdStr)
	if err != nil {
		return None, nil, err
	}

	switch command {
	case Export:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerExportFlags(fs, f)

		// Custom usage for the subcommand
		fs.Usage = func() {
			printSubcommandUsage(command, "Archive the selected categories into the destination directory.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(command, fs, f)
		return command, flagMap, err

	case List:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerSelectionFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Show each category's source directory, its current data and the last export run.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(command, fs, f)
		return command, flagMap, err

	case Init:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerInitFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Create or update the configuration file.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(command, fs, f)
		return command, flagMap, err

	case Prune:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerPruneFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Delete outdated timestamped archives beyond the configured keep count.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(command, fs, f)
		return command, flagMap, err

	case Open:
		fs := flag.NewFlagSet(command.String(), flag.ContinueOnError)
		registerGlobalFlags(fs, f)
		registerOpenFlags(fs, f)

		fs.Usage = func() {
			printSubcommandUsage(command, "Reveal the destination folder in the file browser.", fs)
		}

		if err := fs.Parse(args[1:]); err != nil {
			return command, nil, err
		}
		flagMap, err := flagsToMap(command, fs, f)
		return command, flagMap, err

	case Version:
		return command, nil, nil

	default:
		return None, nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func flagsToMap(c Command, fs *flag.FlagSet, f *cliFlags) (map[string]interface{}, error) {
	// Create a map of the flags that were explicitly set by the user, along with their values.
	// This map is used to selectively override the base configuration.
	usedFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { usedFlags[f.Name] = true })

	flagMap := make(map[string]any)

	addIfUsed(flagMap, usedFlags, "config", f.Config)
	addIfUsed(flagMap, usedFlags, "log-level", f.LogLevel)
	addIfUsed(flagMap, usedFlags, "dry-run", f.DryRun)
	addIfUsed(flagMap, usedFlags, "metrics", f.Metrics)

	addIfUsed(flagMap, usedFlags, "dest", f.Dest)

	addIfUsed(flagMap, usedFlags, "format", f.Format)
	addIfUsed(flagMap, usedFlags, "level", f.Level)
	addIfUsed(flagMap, usedFlags, "buffer-size-kb", f.BufferSizeKB)

	addIfUsed(flagMap, usedFlags, "timestamped", f.Timestamped)
	addIfUsed(flagMap, usedFlags, "archive-root", f.ArchiveRoot)
	addIfUsed(flagMap, usedFlags, "manifest", f.Manifest)
	addIfUsed(flagMap, usedFlags, "keep", f.Keep)

	addIfUsed(flagMap, usedFlags, "check-process", f.CheckProcess)
	addIfUsed(flagMap, usedFlags, "hooks", f.Hooks)

	addIfUsed(flagMap, usedFlags, "force", f.Force)
	addIfUsed(flagMap, usedFlags, "open", f.Open)
	addIfUsed(flagMap, usedFlags, "default", f.Default)

	// Handle flags that require parsing/validation.
	addParsedIfUsed(flagMap, usedFlags, "categories", f.Categories, ParseNameList)
	addParsedIfUsed(flagMap, usedFlags, "process-names", f.ProcessNames, ParseNameList)
	addParsedIfUsed(flagMap, usedFlags, "pre-export-hooks", f.PreExport, ParseCmdList)
	addParsedIfUsed(flagMap, usedFlags, "post-export-hooks", f.PostExport, ParseCmdList)

	return flagMap, nil
}

// addIfUsed adds the value of ptr to flagMap if ptr is not nil and the flag was set.
func addIfUsed[T any](flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *T) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = *ptr
	}
}

// addParsedIfUsed adds the parsed value of ptr to flagMap if ptr is not nil and the flag was set.
func addParsedIfUsed(flagMap map[string]interface{}, usedFlags map[string]bool, name string, ptr *string, parser func(string) []string) {
	if ptr != nil && usedFlags[name] {
		flagMap[name] = parser(*ptr)
	}
}

// printTopLevelUsage prints the main help message.
func printTopLevelUsage(fs *flag.FlagSet) {

	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Backs up Elite Dangerous journals, bindings and graphics settings.\n\n")
	fmt.Fprintf(fs.Output(), "Usage: %s <command> [flags]\n\n", execName)
	fmt.Fprintf(fs.Output(), "Commands:\n")
	fmt.Fprintf(fs.Output(), "  export      Archive the selected categories into the destination directory\n")
	fmt.Fprintf(fs.Output(), "  list        Show categories, their data and the last export run\n")
	fmt.Fprintf(fs.Output(), "  init        Create or update the configuration file\n")
	fmt.Fprintf(fs.Output(), "  prune       Delete outdated timestamped archives\n")
	fmt.Fprintf(fs.Output(), "  open        Reveal the destination folder in the file browser\n")
	fmt.Fprintf(fs.Output(), "  version     Print the application version\n")
	fmt.Fprintf(fs.Output(), "\nRun '%s <command> -help' for more information on a command.\n", execName)
}

// printSubcommandUsage prints the help message for a specific subcommand.
func printSubcommandUsage(command Command, desc string, fs *flag.FlagSet) {

	execName := filepath.Base(os.Args[0])
	fmt.Fprintf(fs.Output(), "%s(%s) ", buildinfo.Name, buildinfo.Version)
	fmt.Fprintf(fs.Output(), "Backs up Elite Dangerous journals, bindings and graphics settings.\n\n")
	fmt.Fprintf(fs.Output(), "Usage of the %s command: %s %s [flags]\n\n", command, execName, command)
	fmt.Fprintf(fs.Output(), "%s\n\n", desc)
	fmt.Fprintf(fs.Output(), "Flags:\n")
	fs.PrintDefaults()
}

// ParseCmdList parses a comma-separated list of shell-like commands.
// It preserves quotes and handles backslash escapes so they can be interpreted by the shell.
func ParseCmdList(s string) []string {
	return parseListInternal(s, true, true)
}

// ParseNameList parses a comma-separated list of plain names, such as
// categories or process names. It removes quotes, as they are only used for
// grouping items with spaces, and treats backslashes as literal characters.
func ParseNameList(s string) []string {
	return parseListInternal(s, false, false)
}

// parseListInternal is the core implementation for parsing a comma-separated list. It supports
// both single (') and double (") quotes to allow items to contain commas or spaces.
// - `keepQuotes`: Preserves quote characters in the output.
// - `handleEscapes`: Treats backslashes as escape characters.
func parseListInternal(s string, keepQuotes, handleEscapes bool) []string {
	var list []string
	var current strings.Builder
	var quoteChar rune

	// Helper to add the current buffered item to the list after trimming whitespace.
	appendItem := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			list = append(list, trimmed)
		}
		current.Reset()
	}

	var isEscaped bool
	for _, r := range s {
		if isEscaped {
			current.WriteRune(r)
			isEscaped = false
			continue
		}

		switch {
		case r == '\\' && handleEscapes:
			isEscaped = true
			// For commands, we also keep the backslash for the shell to interpret.
			current.WriteRune(r)
		case r == '\'' || r == '"':
			if quoteChar == 0 { // Start of a new quoted section.
				quoteChar = r
				if keepQuotes {
					current.WriteRune(r)
				}
			} else if quoteChar == r { // End of the current quoted section.
				quoteChar = 0
				if keepQuotes {
					current.WriteRune(r)
				}
			} else { // A different quote character inside an existing quoted section.
				current.WriteRune(r) // Treat it as a literal character.
			}
		case r == ',' && quoteChar == 0: // Comma outside of any quotes.
			appendItem()
		default:
			current.WriteRune(r)
		}
	}
	appendItem() // Add the final item after the loop finishes.
	return list
}
