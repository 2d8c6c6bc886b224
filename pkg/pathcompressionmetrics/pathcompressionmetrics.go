package pathcompressionmetrics

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// Metrics defines the interface for collecting and reporting statistics of a
// single archive write.
type Metrics interface {
	AddFilesCompressed(n int64)
	AddSymlinksCompressed(n int64)
	AddBytesRead(n int64)
	AddBytesWritten(n int64)
	LogSummary(msg string)
	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// CompressionMetrics holds the atomic counters for tracking an archive write.
// It is the concrete implementation of the Metrics interface.
type CompressionMetrics struct {
	FilesCompressed    atomic.Int64
	SymlinksCompressed atomic.Int64
	BytesRead          atomic.Int64
	BytesWritten       atomic.Int64

	stopChan chan struct{}
}

func (m *CompressionMetrics) AddFilesCompressed(n int64)    { m.FilesCompressed.Add(n) }
func (m *CompressionMetrics) AddSymlinksCompressed(n int64) { m.SymlinksCompressed.Add(n) }
func (m *CompressionMetrics) AddBytesRead(n int64)          { m.BytesRead.Add(n) }
func (m *CompressionMetrics) AddBytesWritten(n int64)       { m.BytesWritten.Add(n) }

func (m *CompressionMetrics) StartProgress(msg string, interval time.Duration) {
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *CompressionMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
	}
}

// LogSummary logs the current state of the metrics.
// This can be called by a background ticker or at the end of the run.
func (m *CompressionMetrics) LogSummary(msg string) {
	read := m.BytesRead.Load()
	written := m.BytesWritten.Load()

	// Calculate compression ratio (avoid division by zero)
	var ratio float64
	if read > 0 {
		ratio = float64(written) / float64(read) * 100.0
	}

	plog.Info(msg,
		"files", m.FilesCompressed.Load(),
		"symlinks", m.SymlinksCompressed.Load(),
		"bytes_read", fmt.Sprintf("%d", read),
		"bytes_written", fmt.Sprintf("%d", written),
		"ratio_pct", fmt.Sprintf("%.2f%%", ratio),
	)
}

// NoopMetrics is an implementation of the Metrics interface that performs no operations.
// It can be used to disable metrics collection without changing the calling code.
type NoopMetrics struct{}

func (m *NoopMetrics) AddFilesCompressed(n int64)                       {}
func (m *NoopMetrics) AddSymlinksCompressed(n int64)                    {}
func (m *NoopMetrics) AddBytesRead(n int64)                             {}
func (m *NoopMetrics) AddBytesWritten(n int64)                          {}
func (m *NoopMetrics) LogSummary(msg string)                            {}
func (m *NoopMetrics) StartProgress(msg string, interval time.Duration) {}
func (m *NoopMetrics) StopProgress()                                    {}

// Statically assert that our types implement the interface.
var _ Metrics = (*CompressionMetrics)(nil)
var _ Metrics = (*NoopMetrics)(nil)
