// Package metafile persists a small JSON summary of the last export run at
// the destination root. The list command reads it to show when the archives
// were written and how each category fared, without opening any archive.
package metafile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulschiretz/ed-backup/pkg/plog"
	"github.com/paulschiretz/ed-backup/pkg/util"
)

// MetaFileName is the name of the run metadata file.
const MetaFileName = ".ed-backup.meta.json"

// SchemaVersion is the current layout version of the metadata file. Loads
// reject files written by a newer schema instead of misreading them.
const SchemaVersion = 1

// Content holds the contents of the metadata file.
type Content struct {
	SchemaVersion int       `json:"schemaVersion"`
	AppVersion    string    `json:"appVersion"`
	UpdatedAtUTC  time.Time `json:"updatedAtUTC"`
	LastRun       RunInfo   `json:"lastRun"`
}

// RunInfo describes a single export run.
type RunInfo struct {
	StartedAtUTC time.Time   `json:"startedAtUTC"`
	Duration     string      `json:"duration"`
	Results      []RunResult `json:"results"`
}

// RunResult records the outcome for one category.
type RunResult struct {
	Category string `json:"category"`
	Status   string `json:"status"`
	Archive  string `json:"archive,omitempty"`
	Entries  int64  `json:"entries,omitempty"`
	Bytes    int64  `json:"bytes,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Save writes the metadata file into the given destination directory. The
// write goes through a temp file and rename so a crash never leaves a
// truncated metadata file behind.
func Save(dirPath string, content *Content) error {
	content.SchemaVersion = SchemaVersion
	content.UpdatedAtUTC = time.Now().UTC()

	jsonData, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal run metadata: %w", err)
	}

	metaFilePath := filepath.Join(dirPath, MetaFileName)
	tmpF, err := os.CreateTemp(dirPath, MetaFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp metadata file: %w", err)
	}
	defer func() {
		if err := os.Remove(tmpF.Name()); err != nil && !os.IsNotExist(err) {
			plog.Warn("Failed to remove temporary metadata file", "path", tmpF.Name(), "error", err)
		}
	}()

	if _, err := tmpF.Write(jsonData); err != nil {
		tmpF.Close()
		return fmt.Errorf("could not write temp metadata file: %w", err)
	}
	if err := tmpF.Close(); err != nil {
		return fmt.Errorf("could not close temp metadata file: %w", err)
	}

	// The metadata is part of the exported data itself, so unlike the lock
	// file it stays group-writable for shared destination folders.
	if err := os.Chmod(tmpF.Name(), util.UserGroupWritableFilePerms); err != nil {
		return fmt.Errorf("could not set permissions on metadata file: %w", err)
	}

	if err := os.Rename(tmpF.Name(), metaFilePath); err != nil {
		return fmt.Errorf("could not write meta file %s: %w", metaFilePath, err)
	}
	return nil
}

// Load opens and parses the metadata file in a given destination directory.
// A missing file is not an error: the destination simply has no recorded run
// yet, and ok is false.
func Load(dirPath string) (Content, bool, error) {
	metaFilePath := filepath.Join(dirPath, MetaFileName)
	metaFile, err := os.Open(metaFilePath)
	if err != nil {
		if os.IsNotExist(err) {
			return Content{}, false, nil
		}
		return Content{}, false, fmt.Errorf("could not open metafile %s: %w", metaFilePath, err)
	}
	defer metaFile.Close()

	var content Content
	decoder := json.NewDecoder(metaFile)
	if err := decoder.Decode(&content); err != nil {
		return Content{}, false, fmt.Errorf("could not parse metafile %s: %w. It may be corrupt", metaFilePath, err)
	}

	if content.SchemaVersion > SchemaVersion {
		return Content{}, false, fmt.Errorf("metafile %s has schema version %d, this build understands up to %d. Update ed-backup",
			metaFilePath, content.SchemaVersion, SchemaVersion)
	}

	return content, true, nil
}
