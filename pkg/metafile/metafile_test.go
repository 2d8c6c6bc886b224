package metafile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()

	// 1. Test Save
	started := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	testContent := Content{
		AppVersion: "1.2.0",
		LastRun: RunInfo{
			StartedAtUTC: started,
			Duration:     "1.5s",
			Results: []RunResult{
				{Category: "Bindings", Status: "success", Archive: "Bindings.zip", Entries: 3, Bytes: 1024},
				{Category: "Graphics", Status: "skipped", Reason: "no data found"},
			},
		},
	}

	if err := Save(tempDir, &testContent); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	metaFilePath := filepath.Join(tempDir, MetaFileName)
	if _, err := os.Stat(metaFilePath); os.IsNotExist(err) {
		t.Fatalf("Metafile was not created at %s", metaFilePath)
	}

	// 2. Test Load
	readContent, ok, err := Load(tempDir)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !ok {
		t.Fatal("Load() reported no metafile even though one was saved")
	}

	if readContent.SchemaVersion != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SchemaVersion, readContent.SchemaVersion)
	}
	if readContent.AppVersion != testContent.AppVersion {
		t.Errorf("Expected app version %q, got %q", testContent.AppVersion, readContent.AppVersion)
	}
	if readContent.UpdatedAtUTC.IsZero() {
		t.Error("Expected UpdatedAtUTC to be stamped by Save")
	}
	if !readContent.LastRun.StartedAtUTC.Equal(started) {
		t.Errorf("Expected start time %v, got %v", started, readContent.LastRun.StartedAtUTC)
	}
	if len(readContent.LastRun.Results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(readContent.LastRun.Results))
	}
	if readContent.LastRun.Results[0].Archive != "Bindings.zip" {
		t.Errorf("Expected first result archive 'Bindings.zip', got %q", readContent.LastRun.Results[0].Archive)
	}
	if readContent.LastRun.Results[1].Reason != "no data found" {
		t.Errorf("Expected second result reason 'no data found', got %q", readContent.LastRun.Results[1].Reason)
	}
}

func TestLoadMissingMetafile(t *testing.T) {
	tempDir := t.TempDir()

	content, ok, err := Load(tempDir)
	if err != nil {
		t.Fatalf("Expected no error for a missing metafile, got %v", err)
	}
	if ok {
		t.Error("Expected ok=false for a missing metafile")
	}
	if content.SchemaVersion != 0 {
		t.Errorf("Expected zero content for a missing metafile, got %+v", content)
	}
}

func TestLoadCorruptMetafile(t *testing.T) {
	tempDir := t.TempDir()
	metaFilePath := filepath.Join(tempDir, MetaFileName)
	// Write some invalid JSON to simulate corruption
	if err := os.WriteFile(metaFilePath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt metafile: %v", err)
	}

	_, _, err := Load(tempDir)
	if err == nil {
		t.Fatal("Expected an error when reading a corrupt metafile, but got nil")
	}
	if !strings.Contains(err.Error(), "could not parse metafile") {
		t.Errorf("Expected error about parsing metafile, got %v", err)
	}
}

func TestLoadNewerSchemaIsRejected(t *testing.T) {
	tempDir := t.TempDir()
	metaFilePath := filepath.Join(tempDir, MetaFileName)
	newer := `{"schemaVersion": 99, "appVersion": "9.9.9"}`
	if err := os.WriteFile(metaFilePath, []byte(newer), 0644); err != nil {
		t.Fatalf("Failed to write metafile: %v", err)
	}

	_, _, err := Load(tempDir)
	if err == nil {
		t.Fatal("Expected an error for a newer schema version, but got nil")
	}
	if !strings.Contains(err.Error(), "schema version") {
		t.Errorf("Expected error about schema version, got %v", err)
	}
}

func TestSaveOverwritesPrevious(t *testing.T) {
	tempDir := t.TempDir()

	first := Content{AppVersion: "1.0.0", LastRun: RunInfo{Duration: "1s"}}
	if err := Save(tempDir, &first); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}
	second := Content{AppVersion: "1.1.0", LastRun: RunInfo{Duration: "2s"}}
	if err := Save(tempDir, &second); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	readContent, ok, err := Load(tempDir)
	if err != nil || !ok {
		t.Fatalf("Load() failed: ok=%v err=%v", ok, err)
	}
	if readContent.AppVersion != "1.1.0" {
		t.Errorf("Expected latest app version '1.1.0', got %q", readContent.AppVersion)
	}

	// No temp files may survive the rewrite.
	entries, err := os.ReadDir(tempDir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			t.Errorf("leftover temp file found: %s", entry.Name())
		}
	}
}
