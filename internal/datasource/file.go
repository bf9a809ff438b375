package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/progress"
)

// FileKV keeps every key in one JSON object on disk. Each mutation rewrites
// the whole document.
type FileKV struct {
	mu   sync.Mutex
	path string
	data map[string]string
}

// NewFileKV opens the document at source.Path. A missing file is an empty
// store. So is an unreadable or corrupt one: the bad document is moved
// aside and the store starts fresh.
func NewFileKV(source DataSource, logger *zap.Logger) (*FileKV, error) {
	if source.Type != SourceTypeFile {
		return nil, fmt.Errorf("source is not a file: %s", source.Type)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &FileKV{path: source.Path, data: make(map[string]string)}

	raw, err := os.ReadFile(source.Path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		metrics.HydrateFallback.Inc()
		logger.Warn("progress file unreadable, starting empty", zap.String("path", source.Path), zap.Error(err))
		return f, nil
	}
	if len(raw) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(raw, &f.data); err != nil {
		metrics.HydrateFallback.Inc()
		f.data = make(map[string]string)
		moved, mvErr := moveAside(source.Path)
		logger.Warn("progress file corrupt, starting empty",
			zap.String("path", source.Path), zap.String("moved_to", moved), zap.Error(err))
		if mvErr != nil {
			logger.Warn("could not move corrupt progress file aside", zap.Error(mvErr))
		}
		return f, nil
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	return f, nil
}

// CorruptSuffix is appended to a store file that could not be read back.
const CorruptSuffix = ".corrupt"

// moveAside renames path so a fresh store can take its place. An earlier
// corrupt copy is replaced.
func moveAside(path string) (string, error) {
	dst := path + CorruptSuffix
	if err := os.Rename(path, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Path returns the document location
func (f *FileKV) Path() string { return f.path }

func (f *FileKV) Get(key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", progress.ErrNotFound
	}
	return v, nil
}

func (f *FileKV) Set(key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	f.data[key] = value
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		return err
	}
	return nil
}

func (f *FileKV) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev, had := f.data[key]
	if !had {
		return nil
	}
	delete(f.data, key)
	if err := f.flush(); err != nil {
		f.data[key] = prev
		return err
	}
	return nil
}

// Keys returns every stored key in sorted order
func (f *FileKV) Keys() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// flush writes the document atomically (temp file + rename).
func (f *FileKV) flush() error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
