package pathcompression

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

type tarCompressor struct {
	t *compressTask
}

func newTarCompressor(t *compressTask) *tarCompressor {
	return &tarCompressor{t: t}
}

func (c *tarCompressor) Compress(ctx context.Context, absSourcePath, absArchiveFilePath string) (retErr error) {
	// 1. Create Temp File
	targetF, err := os.CreateTemp(filepath.Dir(absArchiveFilePath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("failed to create temp archive: %w", err)
	}
	tempName := targetF.Name()

	// Ensure cleanup on error
	defer func() {
		if retErr != nil {
			targetF.Close()
			os.Remove(tempName)
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

	// 3. Close explicitly
	if err := targetF.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 4. Atomic Rename
	if err := os.Rename(tempName, absArchiveFilePath); err != nil {
		return fmt.Errorf("failed to rename temp archive to final path: %w", err)
	}

	return nil
}

func (c *tarCompressor) writeArchive(ctx context.Context, absSourcePath string, targetF *os.File) (retErr error) {

	mw := &compressMetricWriter{w: targetF, stats: &c.t.stats, metrics: c.t.metrics}
	bufWriter := c.t.ioWriterPool.Get().(*bufio.Writer)
	bufWriter.Reset(mw)
	defer func() {
		bufWriter.Reset(io.Discard)
		c.t.ioWriterPool.Put(bufWriter)
	}()

	var compressedWriter io.WriteCloser
	if c.t.task.Format == TarZst {
		var encoderLevel zstd.EncoderLevel
		switch c.t.task.Level {
		case Fastest:
			encoderLevel = zstd.SpeedFastest
		case Better:
			encoderLevel = zstd.SpeedBetterCompression
		case Best:
			encoderLevel = zstd.SpeedBestCompression
		default:
			encoderLevel = zstd.SpeedDefault
		}

		zstdWriter, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(encoderLevel))
		if err != nil {
			return fmt.Errorf("failed to create zstd writer: %w", err)
		}
		compressedWriter = zstdWriter
	} else {
		var lvl int
		switch c.t.task.Level {
		case Fastest:
			lvl = pgzip.BestSpeed
		case Better:
			lvl = 6 // Good balance
		case Best:
			lvl = pgzip.BestCompression
		default:
			lvl = pgzip.DefaultCompression
		}
		pgzipWriter, err := pgzip.NewWriterLevel(bufWriter, lvl)
		if err != nil {
			return fmt.Errorf("failed to create gzip writer: %w", err)
		}
		compressedWriter = pgzipWriter
	}

	tarWriter := tar.NewWriter(compressedWriter)

	// Robust cleanup
	defer func() {
		if err := tarWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("tar writer close failed: %w", err)
		}
		if err := compressedWriter.Close(); err != nil && retErr == nil {
			retErr = fmt.Errorf("compressed writer close failed: %w", err)
		}
		if err := bufWriter.Flush(); err != nil && retErr == nil {
			retErr = fmt.Errorf("buffer flush failed: %w", err)
		}
	}()

	err := c.t.walkAndCompress(absSourcePath, func(absSrcPath, relPath string, info os.FileInfo, buf []byte) error {
		// Add File Logic
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", absSrcPath, err)
		}
		header.Name = relPath

		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", relPath, err)
		}

		fileToTar, err := secureFileOpen(absSrcPath, info)
		if err != nil {
			return fmt.Errorf("failed to open file %s: %w", absSrcPath, err)
		}
		defer fileToTar.Close()

		mr := &compressMetricReader{r: fileToTar, stats: &c.t.stats, metrics: c.t.metrics}
		_, err = io.CopyBuffer(tarWriter, mr, buf)
		return err
	}, func(absSrcPath, relPath string, info os.FileInfo) error {
		// Add Symlink Logic
		target, err := os.Readlink(absSrcPath)
		if err != nil {
			return fmt.Errorf("failed to read link target for %s: %w", absSrcPath, err)
		}
		c.t.stats.BytesRead += int64(len(target))
		c.t.metrics.AddBytesRead(int64(len(target)))

		header, err := tar.FileInfoHeader(info, target)
		if err != nil {
			return fmt.Errorf("failed to create tar header for %s: %w", absSrcPath, err)
		}
		header.Name = relPath

		return tarWriter.WriteHeader(header)
	})
	if err != nil {
		return err
	}

	return c.writeExtraEntries(ctx, tarWriter)
}

// writeExtraEntries appends the task's synthesized entries (manifest) after
// the walked tree. Extra entries sit at the archive root regardless of
// ArchiveRoot.
func (c *tarCompressor) writeExtraEntries(ctx context.Context, tarWriter *tar.Writer) error {
	for _, extra := range c.t.task.Extra {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		header := &tar.Header{
			Name:     extra.Name,
			Mode:     int64(util.UserWritableFilePerms),
			Size:     int64(len(extra.Data)),
			ModTime:  extra.ModTime,
			Typeflag: tar.TypeReg,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return fmt.Errorf("failed to write tar header for %s: %w", extra.Name, err)
		}
		if _, err := io.Copy(tarWriter, bytes.NewReader(extra.Data)); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", extra.Name, err)
		}

		c.t.stats.BytesRead += int64(len(extra.Data))
		c.t.metrics.AddBytesRead(int64(len(extra.Data)))
		c.t.stats.ExtraEntries++
	}
	return nil
}
