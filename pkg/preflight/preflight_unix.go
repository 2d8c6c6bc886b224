//go:build !windows

package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/paulschiretz/ed-backup/pkg/plog"
)

// checkVolumeExists is a no-op on Unix. Volume availability is covered by the
// unmounted-path warning instead.
func checkVolumeExists(path string) error {
	return nil
}

// warnIfLikelyUnmounted warns when the path resides on the root filesystem
// outside the user's home directory. A destination like /mnt/usb/ed-backup
// that resolves to the system disk usually means the drive is not mounted and
// the export would silently fill a "ghost" directory.
func warnIfLikelyUnmounted(path string) {
	// Destinations under the home directory are always intentional.
	homeDir, _ := os.UserHomeDir()
	if homeDir != "" && strings.HasPrefix(path, homeDir) {
		return
	}
	if path == "/" {
		return
	}

	// A mount point has a different device than its parent, so it is
	// definitely backed by a mounted filesystem.
	if isMount, err := IsMountPoint(path); err == nil && isMount {
		return
	}

	rootDev, err := deviceID("/")
	if err != nil {
		return
	}
	pathDev, err := deviceID(path)
	if err != nil {
		return
	}
	if pathDev == rootDev {
		plog.Warn("Destination resolves to the system disk. If it should live on an external drive, make sure the drive is mounted",
			"path", path)
	}
}

// deviceID returns the filesystem device ID for a path.
func deviceID(path string) (uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	stat, ok := info.Sys().(*unix.Stat_t)
	if !ok {
		return 0, fmt.Errorf("unsupported platform for unix.Stat_t")
	}
	return uint64(stat.Dev), nil
}

// platformAvailableBytes reports the free bytes on the filesystem holding path.
func platformAvailableBytes(path string) (int64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, fmt.Errorf("statfs failed for %s: %w", path, err)
	}
	return int64(stat.Bavail) * int64(stat.Bsize), nil
}
