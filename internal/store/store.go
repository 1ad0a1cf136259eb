package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/loykin/pnrwatch/internal/pnr"
)

// DefaultPath is the status file used when none is configured.
const DefaultPath = "pnr_status_history.json"

// Snapshot maps a PNR to its most recent Record. History is not retained:
// every Put replaces the prior record for that key.
type Snapshot map[string]pnr.Record

// Get returns the stored record for ref, or nil.
func (s Snapshot) Get(ref string) *pnr.Record {
	r, ok := s[ref]
	if !ok {
		return nil
	}
	return &r
}

// Put overwrites the record for ref.
func (s Snapshot) Put(ref string, r pnr.Record) { s[ref] = r }

// File persists a Snapshot as one pretty-printed JSON document.
type File struct {
	path   string
	logger *slog.Logger
}

// NewFile returns a File store backed by path.
func NewFile(path string, logger *slog.Logger) *File {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &File{path: path, logger: logger}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Load reads the snapshot. A missing file yields an empty snapshot. A file
// that cannot be parsed is logged and also yields an empty snapshot, which
// discards all prior records once Save runs. Any other read error is returned.
func (f *File) Load() (Snapshot, error) {
	b, err := os.ReadFile(filepath.Clean(f.path))
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read status file %s: %w", f.path, err)
	}
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		f.logger.Warn("could not parse existing status file, starting with empty data", "path", f.path, "error", err)
		return Snapshot{}, nil
	}
	if s == nil {
		s = Snapshot{}
	}
	return s, nil
}

// Save writes the full snapshot with sorted keys and two-space indentation.
// The document is written to a sibling temp file and renamed into place. An
// existing file keeps its permission bits. When the directory does not allow
// creating the temp file, an existing file is overwritten in place instead.
func (f *File) Save(s Snapshot) error {
	if s == nil {
		s = Snapshot{}
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}
	b = append(b, '\n')

	mode := fs.FileMode(0o644)
	info, statErr := os.Stat(f.path)
	if statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		if statErr == nil && errors.Is(err, fs.ErrPermission) {
			return f.overwrite(b, mode)
		}
		return fmt.Errorf("write status file %s: %w", f.path, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write status file %s: %w", f.path, err)
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fail(err)
	}
	return nil
}

func (f *File) overwrite(b []byte, mode fs.FileMode) error {
	f.logger.Debug("status directory not writable, overwriting file in place", "path", f.path)
	if err := os.WriteFile(f.path, b, mode); err != nil {
		return fmt.Errorf("write status file %s: %w", f.path, err)
	}
	return nil
}
