package hook

type Plan struct {
	Enabled bool

	PreExportCommands  []string
	PostExportCommands []string

	// Global Flags
	DryRun bool
}
