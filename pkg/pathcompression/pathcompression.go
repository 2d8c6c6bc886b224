// --- ARCHITECTURAL OVERVIEW: Archive Writing Strategy ---
//
// Archives are written with a "Temp File / Atomic Rename" strategy.
//
// The archive content is written to a temporary file in the same directory as
// the final target and only renamed into place after it has been fully written
// and closed. A reader of the destination therefore only ever sees either the
// previous complete archive or the new complete archive.
//
// Rationale:
//  1. Crash safety: An interrupted run never leaves a half-written archive
//     under the final name. The previous export of a category survives intact.
//  2. Overwrite-in-place: Renaming over the old archive replaces it without a
//     window in which the category has no archive at all.
//  3. Cleanup: Temp files from a crashed run are swept by CleanStaleTempFiles
//     before the next write.

// Package pathcompression implements the logic for compressing a directory
// tree into a single archive file (zip, tar.gz or tar.zst).
package pathcompression

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/hints"
	"github.com/paulschiretz/ed-backup/pkg/pathcompressionmetrics"
	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/pool"
)

// ErrNothingToCompress signals that the source tree produced no archive
// entries. It is a hint: the caller decides whether an empty source is a
// problem, the compressor just reports it and removes its temp file.
var ErrNothingToCompress = hints.New("nothing to compress")

// DefaultBufferSizeKB is the I/O buffer size used when a caller does not
// provide one. Keep it between 64KB and 4MB.
const DefaultBufferSizeKB = 256

// Temp file naming, shared by the writers and the stale-file sweep.
const (
	tempFilePrefix  = "ed-backup-"
	tempFileSuffix  = ".tmp"
	tempFilePattern = tempFilePrefix + "*" + tempFileSuffix
)

// ExtraEntry is a synthesized archive entry with in-memory content, used for
// generated files such as an export manifest.
type ExtraEntry struct {
	Name    string
	Data    []byte
	ModTime time.Time
}

// Task describes a single archive write.
type Task struct {
	// AbsSourcePath is the directory tree to compress.
	AbsSourcePath string
	// AbsArchiveFilePath is the final archive location. Its directory must
	// exist; an existing file under this name is replaced atomically.
	AbsArchiveFilePath string

	Format Format
	Level  Level

	// ArchiveRoot, when non-empty, is prepended to every entry name so all
	// content sits under a single top-level directory inside the archive.
	ArchiveRoot string

	// Extra entries are appended after the walked tree.
	Extra []ExtraEntry

	// Metrics may be nil; a no-op implementation is substituted.
	Metrics pathcompressionmetrics.Metrics
}

// Stats reports what a completed (or failed) archive write processed.
type Stats struct {
	Files        int64
	Symlinks     int64
	ExtraEntries int64
	BytesRead    int64
	BytesWritten int64
}

// Entries is the total number of entries written to the archive.
func (s Stats) Entries() int64 {
	return s.Files + s.Symlinks + s.ExtraEntries
}

// PathCompressor writes archives. It is stateless between calls and safe for
// concurrent use; per-call state lives in a task.
type PathCompressor struct {
	ioWriterPool *sync.Pool
	bufferPool   *pool.FixedBufferPool
}

// NewPathCompressor creates a new PathCompressor with an I/O buffer size in KB.
// A non-positive size falls back to DefaultBufferSizeKB; a zero-length copy
// buffer would make io.CopyBuffer panic mid-write.
func NewPathCompressor(bufferSizeKB int) *PathCompressor {
	if bufferSizeKB <= 0 {
		bufferSizeKB = DefaultBufferSizeKB
	}
	bufferSize := bufferSizeKB * 1024
	return &PathCompressor{
		ioWriterPool: &sync.Pool{
			New: func() interface{} {
				return bufio.NewWriterSize(io.Discard, bufferSize)
			},
		},
		bufferPool: pool.NewFixedBuffer(int64(bufferSize)),
	}
}

// Compress writes the archive described by the task and reports what it wrote.
// On error (including ErrNothingToCompress) no file exists at the target path
// that was not there before, and the temp file has been removed.
func (c *PathCompressor) Compress(ctx context.Context, task Task) (Stats, error) {
	// Check for cancellation before touching the destination.
	select {
	case <-ctx.Done():
		return Stats{}, ctx.Err()
	default:
	}

	m := task.Metrics
	if m == nil {
		m = &pathcompressionmetrics.NoopMetrics{}
	}

	t := &compressTask{
		PathCompressor: c,
		ctx:            ctx,
		task:           task,
		metrics:        m,
	}
	return t.execute()
}

// CleanStaleTempFiles removes leftover temp archives from crashed runs.
// Failures are ignored; a stale temp file is cosmetic, not load-bearing.
func CleanStaleTempFiles(dirPath string) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), tempFilePrefix) && strings.HasSuffix(entry.Name(), tempFileSuffix) {
			plog.Debug("Removing stale temporary archive", "file", entry.Name())
			os.Remove(filepath.Join(dirPath, entry.Name()))
		}
	}
}
