package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
)

// Timestamped archive names look like
// EliteDangerous_Bindings_Backup_20260312_174501.zip; the stable form is just
// Bindings.zip. The pieces are fixed so retention can parse the run time back
// out of a directory listing without any side store.
const (
	archiveNamePrefix      = "EliteDangerous_"
	archiveNameInfix       = "_Backup_"
	archiveTimestampLayout = "20060102_150405"
)

// ErrNameMismatch marks a file name that does not follow the timestamped
// archive naming for the given category and format.
var ErrNameMismatch = errors.New("not a timestamped archive name")

// ArchiveFileName returns the file name the category's archive is written
// under. The stable form is reused run after run, overwriting the previous
// archive; the timestamped form is unique per run.
func ArchiveFileName(cat category.Category, format pathcompression.Format, timestamped bool, timestampUTC time.Time) string {
	if !timestamped {
		return cat.ArchiveBasename + "." + format.String()
	}
	return archiveNamePrefix + cat.ArchiveBasename + archiveNameInfix + timestampUTC.Format(archiveTimestampLayout) + "." + format.String()
}

// ParseArchiveTime extracts the run timestamp from a timestamped archive file
// name. Names that do not match the category's naming at all return
// ErrNameMismatch; names that match but carry a malformed timestamp return a
// parse error.
func ParseArchiveTime(fileName string, cat category.Category, format pathcompression.Format) (time.Time, error) {
	prefix := archiveNamePrefix + cat.ArchiveBasename + archiveNameInfix
	suffix := "." + format.String()
	if !strings.HasPrefix(fileName, prefix) || !strings.HasSuffix(fileName, suffix) {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNameMismatch, fileName)
	}

	stamp := strings.TrimSuffix(strings.TrimPrefix(fileName, prefix), suffix)
	timestampUTC, err := time.Parse(archiveTimestampLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("could not parse timestamp in archive name %s: %w", fileName, err)
	}
	return timestampUTC, nil
}
