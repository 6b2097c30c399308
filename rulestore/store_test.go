package rulestore

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"logsentry/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	dir, err := os.MkdirTemp("", "rulestore-test-*")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return New(dir)
}

func sampleRule() *core.Rule {
	return &core.Rule{
		Title:       "Root account usage",
		Description: "Detects console login as the root account",
		Author:      "test",
		Status:      core.StatusActive,
		Detection: core.Detection{
			Severity:  core.SeverityHigh,
			Condition: "userIdentity.type = 'Root'",
		},
	}
}

func TestSaveAssignsIDAndRoundTrips(t *testing.T) {
	s := newTempStore(t)
	r := sampleRule()
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if r.ID == "" {
		t.Fatalf("expected Save to assign an id")
	}

	got, err := s.Get(r.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != r.Title || got.Detection.Condition != r.Detection.Condition {
		t.Errorf("round-tripped rule = %+v, want %+v", got, r)
	}
}

func TestSaveRejectsInvalidCondition(t *testing.T) {
	s := newTempStore(t)
	r := sampleRule()
	r.Detection.Condition = "userIdentity.type EQUALS 'Root'"
	if err := s.Save(r); err == nil {
		t.Fatalf("expected Save to reject an unparsable condition")
	}
}

func TestDeleteUnknownIDIsNotFound(t *testing.T) {
	s := newTempStore(t)
	err := s.Delete("does-not-exist")
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("Delete of unknown id = %v, want ErrNotFound", err)
	}
}

func TestListSkipsCorruptFiles(t *testing.T) {
	s := newTempStore(t)
	r := sampleRule()
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "corrupt.yaml"), []byte(": not yaml: ["), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	rules, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("List returned %d rules, want 1 (corrupt file should be skipped)", len(rules))
	}
}

func TestImportSkipsExistingWithoutOverwrite(t *testing.T) {
	s := newTempStore(t)
	r := sampleRule()
	if err := s.Save(r); err != nil {
		t.Fatalf("Save: %v", err)
	}

	tmp, err := os.CreateTemp("", "import-*.yaml")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer os.Remove(tmp.Name())
	var buf bytes.Buffer
	if err := s.ExportOne(r.ID, &buf); err != nil {
		t.Fatalf("ExportOne: %v", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	tmp.Close()

	summary, err := s.Import(tmp.Name(), false)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(summary.Skipped) != 1 || summary.SuccessCount != 0 {
		t.Errorf("Import summary = %+v, want one skipped rule", summary)
	}
}

func TestExportAllProducesZipWithEveryRule(t *testing.T) {
	s := newTempStore(t)
	for i := 0; i < 3; i++ {
		r := sampleRule()
		r.Title = r.Title + string(rune('A'+i))
		if err := s.Save(r); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := s.ExportAll(&buf); err != nil {
		t.Fatalf("ExportAll: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected non-empty zip archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}
	if len(zr.File) != 3 {
		t.Errorf("archive holds %d files, want 3", len(zr.File))
	}
}
