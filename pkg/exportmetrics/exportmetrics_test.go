package exportmetrics

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/paulschiretz/ed-backup/pkg/plog"
)

func TestExportMetrics_Adders(t *testing.T) {
	t.Run("correctly increments all counters", func(t *testing.T) {
		m := &ExportMetrics{}

		m.AddCategoriesExported(2)
		m.AddCategoriesSkipped(1)
		m.AddCategoriesFailed(1)
		m.AddEntries(42)
		m.AddBytesWritten(4096)
		m.AddArchivesPruned(3)

		if got := m.CategoriesExported.Load(); got != 2 {
			t.Errorf("expected CategoriesExported to be 2, got %d", got)
		}
		if got := m.CategoriesSkipped.Load(); got != 1 {
			t.Errorf("expected CategoriesSkipped to be 1, got %d", got)
		}
		if got := m.CategoriesFailed.Load(); got != 1 {
			t.Errorf("expected CategoriesFailed to be 1, got %d", got)
		}
		if got := m.Entries.Load(); got != 42 {
			t.Errorf("expected Entries to be 42, got %d", got)
		}
		if got := m.BytesWritten.Load(); got != 4096 {
			t.Errorf("expected BytesWritten to be 4096, got %d", got)
		}
		if got := m.ArchivesPruned.Load(); got != 3 {
			t.Errorf("expected ArchivesPruned to be 3, got %d", got)
		}
	})
}

func TestExportMetrics_Log(t *testing.T) {
	t.Run("logs the summary counters", func(t *testing.T) {
		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		t.Cleanup(func() { plog.SetOutput(os.Stderr) })

		m := &ExportMetrics{}
		m.AddCategoriesExported(2)
		m.AddCategoriesSkipped(1)
		m.AddEntries(7)
		m.LogSummary("Export Summary")

		output := logBuf.String()
		if !strings.Contains(output, "msg=\"Export Summary\"") {
			t.Errorf("expected log output to contain the summary message, got: %s", output)
		}
		if !strings.Contains(output, "exported=2") {
			t.Errorf("expected log output to contain 'exported=2', got: %s", output)
		}
		if !strings.Contains(output, "skipped=1") {
			t.Errorf("expected log output to contain 'skipped=1', got: %s", output)
		}
		if !strings.Contains(output, "entries=7") {
			t.Errorf("expected log output to contain 'entries=7', got: %s", output)
		}
	})
}

func TestNoopMetrics(t *testing.T) {
	t.Run("all methods execute without panicking", func(t *testing.T) {
		m := &NoopMetrics{}

		defer func() {
			if r := recover(); r != nil {
				t.Errorf("NoopMetrics method panicked: %v", r)
			}
		}()

		m.AddCategoriesExported(1)
		m.AddCategoriesSkipped(1)
		m.AddCategoriesFailed(1)
		m.AddEntries(1)
		m.AddBytesWritten(1)
		m.AddArchivesPruned(1)
		m.LogSummary("noop test")
	})
}
