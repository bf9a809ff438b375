// Package datasource provides the durable key/value backends behind the
// progress store: a JSON document on disk, a SQLite table, or plain memory.
// It also describes and compares backends so progress can be inspected and
// migrated from the command line.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SourceType identifies a storage backend
type SourceType string

const (
	// SourceTypeMemory keeps progress for the life of the process only
	SourceTypeMemory SourceType = "memory"
	// SourceTypeFile is a single JSON document (progress.json)
	SourceTypeFile SourceType = "file"
	// SourceTypeSQLite is a SQLite database (progress.db)
	SourceTypeSQLite SourceType = "sqlite"
)

// Default file names under the state directory.
const (
	DefaultFileName   = "progress.json"
	DefaultSQLiteName = "progress.db"
)

// ErrUnknownBackend is returned for an unrecognised backend name.
var ErrUnknownBackend = errors.New("unknown storage backend")

// ParseSourceType maps a config/flag value to a SourceType.
func ParseSourceType(s string) (SourceType, error) {
	switch SourceType(s) {
	case SourceTypeMemory, SourceTypeFile, SourceTypeSQLite:
		return SourceType(s), nil
	case "":
		return SourceTypeFile, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// DataSource describes one configured backend
type DataSource struct {
	// Type identifies the backend
	Type SourceType `json:"type"`
	// Path is the backing file; empty for memory
	Path string `json:"path,omitempty"`
	// ModTime is the last modification time of the backing file
	ModTime time.Time `json:"mod_time,omitempty"`
	// Size is the file size in bytes
	Size int64 `json:"size"`
	// Exists reports whether the backing file is present
	Exists bool `json:"exists"`
}

// String returns a human-readable description of the source
func (s DataSource) String() string {
	if s.Type == SourceTypeMemory {
		return "memory (not persisted)"
	}
	if !s.Exists {
		return fmt.Sprintf("%s (%s, not created yet)", s.Path, s.Type)
	}
	return fmt.Sprintf("%s (%s, mod=%s, %d bytes)",
		s.Path, s.Type, s.ModTime.Format(time.RFC3339), s.Size)
}

// NewSource builds a DataSource for typ. An empty path picks the default
// file name inside stateDir.
func NewSource(typ SourceType, path, stateDir string) DataSource {
	src := DataSource{Type: typ, Path: path}
	if typ == SourceTypeMemory {
		src.Path = ""
		return src
	}
	if src.Path == "" {
		name := DefaultFileName
		if typ == SourceTypeSQLite {
			name = DefaultSQLiteName
		}
		src.Path = filepath.Join(stateDir, name)
	}
	src.Refresh()
	return src
}

// Refresh re-reads the backing file's metadata.
func (s *DataSource) Refresh() {
	if s.Path == "" {
		return
	}
	info, err := os.Stat(s.Path)
	if err != nil {
		s.Exists = false
		s.ModTime = time.Time{}
		s.Size = 0
		return
	}
	s.Exists = true
	s.ModTime = info.ModTime()
	s.Size = info.Size()
}
