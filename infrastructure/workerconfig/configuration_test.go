package workerconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestReadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	doc := Configuration{ConnFD: 3, ControlFD: 4, TunFD: 5}
	body, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.BaseMTU != 1500 {
		t.Errorf("BaseMTU = %d, want default 1500", cfg.BaseMTU)
	}
	if cfg.DPDSeconds != 30 {
		t.Errorf("DPDSeconds = %d, want default 30", cfg.DPDSeconds)
	}
	if cfg.ConnFD != 3 || cfg.ControlFD != 4 || cfg.TunFD != 5 {
		t.Errorf("descriptors not preserved: %+v", cfg)
	}
}

func TestReadPreservesExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	doc := Configuration{ConnFD: 3, ControlFD: 4, BaseMTU: 1200, DPDSeconds: 15}
	body, _ := json.Marshal(doc)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if cfg.BaseMTU != 1200 || cfg.DPDSeconds != 15 {
		t.Errorf("explicit values overridden: %+v", cfg)
	}
}

func TestReadRejectsMissingDescriptors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worker.json")
	body, _ := json.Marshal(Configuration{})
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := Read(path); err == nil {
		t.Fatalf("expected error for configuration with no inherited descriptors")
	}
}

func TestReadRejectsMissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing configuration file")
	}
}
