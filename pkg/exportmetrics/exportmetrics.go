package exportmetrics

import (
	"sync/atomic"

	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// Metrics defines the interface for collecting and reporting the outcome
// counts of an export run.
type Metrics interface {
	AddCategoriesExported(n int64)
	AddCategoriesSkipped(n int64)
	AddCategoriesFailed(n int64)
	AddEntries(n int64)
	AddBytesWritten(n int64)
	AddArchivesPruned(n int64)
	LogSummary(msg string)
}

// ExportMetrics holds the atomic counters for tracking an export run.
// It is the concrete implementation of the Metrics interface.
type ExportMetrics struct {
	CategoriesExported atomic.Int64
	CategoriesSkipped  atomic.Int64
	CategoriesFailed   atomic.Int64
	Entries            atomic.Int64
	BytesWritten       atomic.Int64
	ArchivesPruned     atomic.Int64
}

func (m *ExportMetrics) AddCategoriesExported(n int64) { m.CategoriesExported.Add(n) }
func (m *ExportMetrics) AddCategoriesSkipped(n int64)  { m.CategoriesSkipped.Add(n) }
func (m *ExportMetrics) AddCategoriesFailed(n int64)   { m.CategoriesFailed.Add(n) }
func (m *ExportMetrics) AddEntries(n int64)            { m.Entries.Add(n) }
func (m *ExportMetrics) AddBytesWritten(n int64)       { m.BytesWritten.Add(n) }
func (m *ExportMetrics) AddArchivesPruned(n int64)     { m.ArchivesPruned.Add(n) }

// LogSummary logs the current state of the metrics.
func (m *ExportMetrics) LogSummary(msg string) {
	plog.Info(msg,
		"exported", m.CategoriesExported.Load(),
		"skipped", m.CategoriesSkipped.Load(),
		"failed", m.CategoriesFailed.Load(),
		"entries", m.Entries.Load(),
		"bytes_written", m.BytesWritten.Load(),
		"archives_pruned", m.ArchivesPruned.Load(),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddCategoriesExported(n int64) {}
func (m *NoopMetrics) AddCategoriesSkipped(n int64)  {}
func (m *NoopMetrics) AddCategoriesFailed(n int64)   {}
func (m *NoopMetrics) AddEntries(n int64)            {}
func (m *NoopMetrics) AddBytesWritten(n int64)       {}
func (m *NoopMetrics) AddArchivesPruned(n int64)     {}
func (m *NoopMetrics) LogSummary(msg string)         {}

// Statically assert that our types implement the interface.
var _ Metrics = (*ExportMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
