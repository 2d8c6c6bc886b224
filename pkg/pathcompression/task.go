package pathcompression

import (
	"context"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/pathcompressionmetrics"
)

// compressTask holds the mutable state for a single archive write.
// This keeps the PathCompressor itself stateless and safe for concurrent use.
type compressTask struct {
	*PathCompressor
	ctx     context.Context
	task    Task
	metrics pathcompressionmetrics.Metrics
	stats   Stats
}

// execute runs the archive write.
func (t *compressTask) execute() (Stats, error) {
	// Start progress reporting for long sources (journal trees can hold
	// thousands of files).
	t.metrics.StartProgress("Compression progress", 10*time.Second)
	defer func() {
		t.metrics.StopProgress()
		t.metrics.LogSummary("Compression finished")
	}()

	comp, err := newCompressor(t)
	if err != nil {
		return t.stats, err
	}

	if err := comp.Compress(t.ctx, t.task.AbsSourcePath, t.task.AbsArchiveFilePath); err != nil {
		return t.stats, err
	}
	return t.stats, nil
}
