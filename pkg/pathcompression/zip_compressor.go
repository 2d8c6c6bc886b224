package pathcompression

import (
	"archive/zip"
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

type zipCompressor struct {
	t *compressTask
}

func newZipCompressor(t *compressTask) *zipCompressor {
	return &zipCompressor{t: t}
}

func (c *zipCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) (retErr error) {
	// 1. Create Temp File
	// We create it in the same directory as the target to ensure atomic rename.
	targetF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempName := targetF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			targetF.Close()     // Ensure closed
			os.Remove(tempName) // Delete temp file
		}
	}()

	// 2. Write Archive Content
	if err := c.writeArchive(ctx, absSourcePath, targetF); err != nil {
		return err
	}

	// An archive with zero entries is never published.
	if c.t.stats.Entries() == 0 {
		return fmt.Errorf("source %s: %w", absSourcePath, ErrNothingToCompress)
	}

	// 3. Close explicitly to flush to disk before rename
	if err := targetF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempName, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

func (c *zipCompressor) writeArchive(ctx context.Context, absSourcePath string, targetF *os.File) (retErr error) {

	// Get a buffered writer from the pool
	mw := &compressMetricWriter{w: targetF, stats: &c.t.stats, metrics: c.t.metrics}
	bufWriter := c.t.ioWriterPool.Get().(*bufio.Writer)
	bufWriter.Reset(mw)
	defer func() {
		bufWriter.Reset(io.Discard)
		c.t.ioWriterPool.Put(bufWriter)
	}()

	zipWriter := zip.NewWriter(bufWriter)
	zipWriter.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		var lvl int
		switch c.t.task.Level {
		case Fastest:
			lvl = flate.BestSpeed
		case Better:
			lvl = 6 // Good balance
		case Best:
			lvl = flate.BestCompression
		default:
			lvl = flate.DefaultCompression
		}
		return flate.NewWriter(out, lvl)
	})

	// Robust cleanup
	defer func() {
		if err := zipWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("zip writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	err := c.t.walkAndCompress(absSourcePath, func(absSrcPath, relPath string, info os.FileInfo, buf []byte) error {
		// Add File Logic
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", relPath, err)
		}
		header.Name = relPath
		header.Method = zip.Deflate

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", relPath, err)
		}

		fileToZip, err := secureFileOpen(absSrcPath, info)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
		}
		defer fileToZip.Close()

		mr := &compressMetricReader{r: fileToZip, stats: &c.t.stats, metrics: c.t.metrics}
		_, err = io.CopyBuffer(writer, mr, buf)
		return err
	}, func(absSrcPath, relPath string, info os.FileInfo) error {
		// Add Symlink Logic
		target, err := os.Readlink(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to read link target for %s: %w", absSrcPath, err)
		}
		c.t.stats.BytesRead += int64(len(target))
		c.t.metrics.AddBytesRead(int64(len(target)))

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return fmt.Errorf("failed to create zip header for %s: %w", relPath, err)
		}
		header.Name = relPath
		header.Method = zip.Store // Symlinks are stored, not compressed

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", relPath, err)
		}
		_, err = writer.Write([]byte(target))
		return err
	})
	if err != nil {
		return err
	}

	return c.writeExtraEntries(ctx, zipWriter)
}

// writeExtraEntries appends the task's synthesized entries (manifest) after
// the walked tree. Extra entries sit at the archive root regardless of
// ArchiveRoot.
func (c *zipCompressor) writeExtraEntries(ctx context.Context, zipWriter *zip.Writer) error {
	for _, extra := range c.t.task.Extra {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header := &zip.FileHeader{
			Name:     extra.Name,
			Method:   zip.Deflate,
			Modified: extra.ModTime,
		}
		header.SetMode(util.UserWritableFilePerms)

		writer, err := zipWriter.CreateHeader(header)
		if err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", extra.Name, err)
		}
		if _, err := writer.Write(extra.Data); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", extra.Name, err)
		}

		c.t.stats.BytesRead += int64(len(extra.Data))
		c.t.metrics.AddBytesRead(int64(len(extra.Data)))
		c.t.stats.ExtraEntries++
	}
	return nil
}
