package export

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/paulschiretz/ed-backup/pkg/category"
)

// scanWorkers bounds the concurrent source walks. The registry is small
// today, but journal trees can hold tens of thousands of files and there is
// no point walking every category's tree at full fan-out on one spindle.
const scanWorkers = 4

// SourceInfo describes the current on-disk state of one category's source.
type SourceInfo struct {
	Category category.Category

	// Path is the resolved source directory. Empty when resolution failed.
	Path string

	// Exists reports whether Path is present and a directory.
	Exists bool

	// Files counts the prospective archive entries (regular files and
	// symlinks). Bytes sums the regular files' sizes.
	Files int64
	Bytes int64

	// Err carries a per-category inspection problem. Scan never fails as a
	// whole; a category that cannot be inspected reports it here.
	Err error
}

// Scan inspects the sources of the given categories concurrently and returns
// one SourceInfo per category, in request order. It is used by the list
// command and by the free-space estimate before an export.
func (e *Exporter) Scan(ctx context.Context, cats []category.Category) []SourceInfo {
	infos := make([]SourceInfo, len(cats))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanWorkers)
	for i, cat := range cats {
		i, cat := i, cat
		g.Go(func() error {
			infos[i] = e.inspect(gctx, cat)
			return nil
		})
	}
	// Workers never return an error; per-category problems ride in the infos.
	g.Wait()

	return infos
}

// inspect resolves and walks a single category's source.
func (e *Exporter) inspect(ctx context.Context, cat category.Category) SourceInfo {
	info := SourceInfo{Category: cat}

	absSourcePath, err := e.locator.Locate(cat)
	if err != nil {
		info.Err = err
		return info
	}
	info.Path = absSourcePath

	fi, err := os.Stat(absSourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return info
	}
	if err != nil {
		info.Err = fmt.Errorf("could not access source directory %s: %w", absSourcePath, err)
		return info
	}
	if !fi.IsDir() {
		info.Err = fmt.Errorf("source path %s is not a directory", absSourcePath)
		return info
	}
	info.Exists = true

	info.Files, info.Bytes, info.Err = scanSource(ctx, absSourcePath)
	return info
}

// scanSource counts the archive entries a compression of the tree would
// produce: regular files and symlinks, never directories. Bytes sums regular
// file sizes only, matching what a compressor would have to read.
func scanSource(ctx context.Context, absSourcePath string) (files, bytes int64, err error) {
	err = filepath.WalkDir(absSourcePath, func(absEntryPath string, d fs.DirEntry, walkErr error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if walkErr != nil {
			return walkErr
		}

		switch {
		case d.Type().IsRegular():
			fi, statErr := d.Info()
			if statErr != nil {
				return fmt.Errorf("could not stat %s: %w", absEntryPath, statErr)
			}
			files++
			bytes += fi.Size()
		case d.Type()&fs.ModeSymlink != 0:
			files++
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return files, bytes, nil
}
