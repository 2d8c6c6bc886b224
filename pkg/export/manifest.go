package export

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/buildinfo"
	"github.com/paulschiretz/ed-backup/pkg/category"
	"github.com/paulschiretz/ed-backup/pkg/pathcompression"
)

// ManifestFileName is the name of the generated in-archive manifest entry.
const ManifestFileName = "manifest.json"

// manifestFormatVersion is the layout version of the manifest content.
const manifestFormatVersion = 1

// manifestContent records where and when an archive was produced. It lives
// inside the archive itself, so a stray archive found years later still says
// which machine and source tree it came from.
type manifestContent struct {
	FormatVersion int       `json:"formatVersion"`
	App           string    `json:"app"`
	AppVersion    string    `json:"appVersion"`
	Category      string    `json:"category"`
	CreatedAtUTC  time.Time `json:"createdAtUTC"`
	Machine       string    `json:"machine"`
	OS            string    `json:"os"`
	SourcePath    string    `json:"sourcePath"`
	FileCount     int64     `json:"fileCount"`
}

// manifestEntry builds the synthesized manifest.json archive entry for a
// category export.
func manifestEntry(cat category.Category, absSourcePath string, fileCount int64, createdAtUTC time.Time) (pathcompression.ExtraEntry, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	content := manifestContent{
		FormatVersion: manifestFormatVersion,
		App:           buildinfo.Name,
		AppVersion:    buildinfo.Version,
		Category:      cat.Name,
		CreatedAtUTC:  createdAtUTC,
		Machine:       hostname,
		OS:            runtime.GOOS,
		SourcePath:    absSourcePath,
		FileCount:     fileCount,
	}

	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return pathcompression.ExtraEntry{}, fmt.Errorf("could not marshal archive manifest: %w", err)
	}

	return pathcompression.ExtraEntry{
		Name:    ManifestFileName,
		Data:    jsonData,
		ModTime: createdAtUTC,
	}, nil
}
