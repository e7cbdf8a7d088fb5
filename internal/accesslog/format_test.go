package accesslog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFormat_OverridesKeepDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "format.yaml")
	content := "fields:\n  status: code\n  pool: backend\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFormat(path)
	if err != nil {
		t.Fatal(err)
	}
	if f.Status != "code" || f.Pool != "backend" {
		t.Fatalf("overrides not applied: %+v", f)
	}
	if f.Release != "release" || f.UpstreamStatus != "upstream_status" {
		t.Fatalf("unset keys should keep defaults: %+v", f)
	}
}

func TestLoadFormat_MissingFile_Error(t *testing.T) {
	if _, err := LoadFormat(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFormat_BadYAML_Error(t *testing.T) {
	path := filepath.Join(t.TempDir(), "format.yaml")
	if err := os.WriteFile(path, []byte("fields: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFormat(path); err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}
