// Package rulestore implements the Rule Store (C4): loading, validating,
// saving, listing, deleting, importing and exporting YAML detection rule
// files on disk.
package rulestore

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"logsentry/core"
	"logsentry/internal/logger"
)

// Store manages a directory of one-rule-per-file YAML documents. A single
// Store guards its directory with an in-process mutex; concurrent writers
// across processes are not supported (spec.md §5).
type Store struct {
	dir string
	mu  sync.Mutex
}

// New returns a Store rooted at dir. dir is created on first Save if it
// does not already exist.
func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id+".yaml")
}

// List loads every rule file in the store directory, in id order. A rule
// file that fails to parse is skipped and logged, not returned as an
// error, so one corrupt file cannot block the rest of the store from
// loading (mirrors the bulk-scan per-file isolation of spec.md §4.5).
func (s *Store) List() ([]*core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	var rules []*core.Rule
	for _, e := range entries {
		if e.IsDir() || !isYAMLFile(e.Name()) {
			continue
		}
		r, err := loadRuleFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			logger.Warn("skipping rule file %s: %v", e.Name(), err)
			continue
		}
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

// Get loads a single rule by id.
func (s *Store) Get(id string) (*core.Rule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id string) (*core.Rule, error) {
	r, err := loadRuleFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: rule %q", core.ErrNotFound, id)
		}
		return nil, err
	}
	return r, nil
}

// Save validates r and writes it to disk, assigning a fresh id via uuid
// when r.ID is empty. The write is atomic: the rule is serialized to a
// temp file in the store directory, then renamed into place.
func (s *Store) Save(r *core.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := Validate(r); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	return atomicWrite(s.pathFor(r.ID), data)
}

// Delete removes the rule file for id. Deleting an unknown id is a
// ErrNotFound, not a silent no-op, so callers can distinguish a stale UI
// state from an actual failure.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.pathFor(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: rule %q", core.ErrNotFound, id)
		}
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return nil
}

// ImportSummary reports the outcome of importing one or many rule files.
type ImportSummary struct {
	SuccessCount int      `json:"success_count"`
	Skipped      []string `json:"skipped"`
	Errors       []string `json:"errors"`
}

// Import loads rule(s) from path — a single YAML file or a .zip archive
// of YAML files — and saves each into the store. When overwrite is false,
// a rule whose id already exists in the store is skipped rather than
// replaced.
func (s *Store) Import(path string, overwrite bool) (*ImportSummary, error) {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return s.importZip(path, overwrite)
	}
	summary := &ImportSummary{}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	s.importOne(filepath.Base(path), data, overwrite, summary)
	return summary, nil
}

// ImportOne loads a single rule YAML file (not a zip archive) and saves
// it, returning the saved rule. Unlike Import, a name collision with
// overwrite=false is a ErrDuplicateID rather than a silently-skipped
// entry in a summary — this is the single-rule import path named
// explicitly by spec.md §6's import_rule command.
func (s *Store) ImportOne(path string, overwrite bool) (*core.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	var r core.Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, getErr := s.getLocked(r.ID)
	exists := getErr == nil
	s.mu.Unlock()

	if exists && !overwrite {
		return nil, fmt.Errorf("%w: rule %q", core.ErrDuplicateID, r.ID)
	}
	if err := s.Save(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) importZip(path string, overwrite bool) (*ImportSummary, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	defer zr.Close()

	summary := &ImportSummary{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !isYAMLFile(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			continue
		}
		s.importOne(f.Name, data, overwrite, summary)
	}
	return summary, nil
}

func (s *Store) importOne(name string, data []byte, overwrite bool, summary *ImportSummary) {
	var r core.Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := Validate(&r); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}

	s.mu.Lock()
	_, err := s.getLocked(r.ID)
	exists := err == nil
	s.mu.Unlock()

	if exists && !overwrite {
		summary.Skipped = append(summary.Skipped, r.ID)
		return
	}
	if err := s.Save(&r); err != nil {
		summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", name, err))
		return
	}
	summary.SuccessCount++
}

// ExportOne writes a single rule's YAML to w.
func (s *Store) ExportOne(id string, w io.Writer) error {
	r, err := s.Get(id)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	_, err = w.Write(data)
	return err
}

// ExportAll writes every rule in the store into a zip archive on w, one
// YAML file per rule named by id.
func (s *Store) ExportAll(w io.Writer) error {
	rules, err := s.List()
	if err != nil {
		return err
	}
	zw := zip.NewWriter(w)
	for _, r := range rules {
		data, err := yaml.Marshal(r)
		if err != nil {
			zw.Close()
			return fmt.Errorf("%w: %v", core.ErrSchema, err)
		}
		fw, err := zw.Create(r.ID + ".yaml")
		if err != nil {
			zw.Close()
			return err
		}
		if _, err := fw.Write(data); err != nil {
			zw.Close()
			return err
		}
	}
	return zw.Close()
}

func loadRuleFile(path string) (*core.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r core.Rule
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSchema, err)
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// atomicWrite writes data to a temp file beside target and renames it
// into place, so a reader never observes a partially written rule file.
func atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	tmp, err := os.CreateTemp(dir, ".rulestore-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", core.ErrIO, err)
	}
	return nil
}

func isYAMLFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}
