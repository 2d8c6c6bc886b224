package pathcompression

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/paulschiretz/ed-backup/pkg/pathcompressionmetrics"
	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// compressor defines the interface for compressing a directory into an archive file.
type compressor interface {
	Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) error
}

// newCompressor returns the correct implementation for the task's format.
func newCompressor(t *compressTask) (compressor, error) {
	switch t.task.Format {
	case Zip:
		return newZipCompressor(t), nil
	case TarGz, TarZst:
		return newTarCompressor(t), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", t.task.Format)
	}
}

// compressMetricWriter wraps an io.Writer and updates stats and metrics on every write.
type compressMetricWriter struct {
	w       io.Writer
	stats   *Stats
	metrics pathcompressionmetrics.Metrics
}

func (mw *compressMetricWriter) Write(p []byte) (n int, err error) {
	n, err = mw.w.Write(p)
	if n > 0 {
		mw.stats.BytesWritten += int64(n)
		mw.metrics.AddBytesWritten(int64(n))
	}
	return
}

// compressMetricReader wraps an io.Reader and updates stats and metrics on every read.
type compressMetricReader struct {
	r       io.Reader
	stats   *Stats
	metrics pathcompressionmetrics.Metrics
}

func (mr *compressMetricReader) Read(p []byte) (n int, err error) {
	n, err = mr.r.Read(p)
	if n > 0 {
		mr.stats.BytesRead += int64(n)
		mr.metrics.AddBytesRead(int64(n))
	}
	return
}

// secureFileOpen opens the file at absFilePath and verifies it is still the
// one discovered during the walk. This prevents a file being swapped for a
// symlink between discovery and open (TOCTOU), and catches size changes that
// would corrupt a tar header computed from the stale info.
func secureFileOpen(absFilePath string, expected os.FileInfo) (*os.File, error) {
	f, err := os.Open(absFilePath)
	if err != nil {
		return nil, err
	}

	openedInfo, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat opened file: %w", err)
	}

	if !os.SameFile(expected, openedInfo) {
		f.Close()
		return nil, fmt.Errorf("file changed during export (possible security attack): %s", absFilePath)
	}

	if openedInfo.Size() != expected.Size() {
		f.Close()
		return nil, fmt.Errorf("file size changed during export: %s", absFilePath)
	}

	return f, nil
}

// walkAndCompress walks the source tree and feeds every entry to the
// format-specific callbacks. It is shared by the zip and tar writers.
//
// Directories contribute no entries of their own; an archive holds exactly the
// regular files and symlinks of the tree, named by their normalized relative
// path (optionally below archiveRoot).
func (t *compressTask) walkAndCompress(
	absSourcePath string,
	addFile func(absSourcePathEntry, relTargetPathKey string, info os.FileInfo, buf []byte) error,
	addSymlink func(absSourcePathEntry, relTargetPathKey string, info os.FileInfo) error,
) error {
	return filepath.WalkDir(absSourcePath, func(absSourcePathEntry string, d os.DirEntry, walkErr error) error {
		select {
		case <-t.ctx.Done():
			return t.ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("failed to get file info for %s: %w", absSourcePathEntry, err)
		}

		relTargetPathKey, err := filepath.Rel(absSourcePath, absSourcePathEntry)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %s: %w", absSourcePathEntry, err)
		}
		relTargetPathKey = util.NormalizePath(relTargetPathKey)
		if t.task.ArchiveRoot != "" {
			relTargetPathKey = path.Join(t.task.ArchiveRoot, relTargetPathKey)
		}

		plog.Debug("ADD", "file", relTargetPathKey)

		if info.Mode()&os.ModeSymlink != 0 {
			if err := addSymlink(absSourcePathEntry, relTargetPathKey, info); err != nil {
				return err
			}
			t.stats.Symlinks++
			t.metrics.AddSymlinksCompressed(1)
			return nil
		}

		// Handle Regular Files
		if err := func() error {
			bufPtr := t.bufferPool.Get()
			defer t.bufferPool.Put(bufPtr)
			return addFile(absSourcePathEntry, relTargetPathKey, info, *bufPtr)
		}(); err != nil {
			return err
		}
		t.stats.Files++
		t.metrics.AddFilesCompressed(1)
		return nil
	})
}
