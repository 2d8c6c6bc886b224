package preflight

// Plan selects which destination checks Run performs.
type Plan struct {
	EnsureDestination bool
	CheckWritable     bool
	CheckFreeSpace    bool

	// RequiredBytes is the estimated total size of the sources selected for
	// export. Only consulted when CheckFreeSpace is set.
	RequiredBytes int64

	// Global Flags
	DryRun bool
}
