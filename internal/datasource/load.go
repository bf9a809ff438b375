package datasource

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/metrics"
	"github.com/vanderheijden86/tourkit/pkg/progress"
)

// Backend is a progress.KV that can also enumerate its keys and be closed.
type Backend interface {
	progress.KV
	Keys() ([]string, error)
	Close() error
}

// memoryBackend adapts progress.MemoryKV to Backend.
type memoryBackend struct {
	*progress.MemoryKV
}

func (m memoryBackend) Keys() ([]string, error) { return m.MemoryKV.Keys(), nil }
func (m memoryBackend) Close() error            { return nil }

func (f *FileKV) Close() error { return nil }

// Open returns the backend described by source, dispatching on its type.
// Stored progress that cannot be read is not an error: the file backend
// starts empty, and an unusable SQLite database is moved aside and
// recreated, or replaced by an in-memory store when even that fails. Only
// an unknown backend type is an error. logger may be nil.
func Open(source DataSource, logger *zap.Logger) (Backend, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch source.Type {
	case SourceTypeMemory:
		return memoryBackend{progress.NewMemoryKV()}, nil

	case SourceTypeFile:
		return NewFileKV(source, logger)

	case SourceTypeSQLite:
		return openSQLite(source, logger), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, source.Type)
	}
}

func openSQLite(source DataSource, logger *zap.Logger) Backend {
	kv, err := NewSQLiteKV(source)
	if err == nil {
		return kv
	}
	metrics.HydrateFallback.Inc()
	logger.Warn("progress database unusable", zap.String("path", source.Path), zap.Error(err))

	if _, statErr := os.Stat(source.Path); statErr == nil {
		moved, mvErr := moveAside(source.Path)
		if mvErr == nil {
			// WAL side files belong to the database that was moved.
			for _, ext := range []string{"-wal", "-shm"} {
				if rmErr := os.Remove(source.Path + ext); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
					logger.Warn("could not remove stale sqlite file", zap.String("path", source.Path+ext), zap.Error(rmErr))
				}
			}
			if kv, err = NewSQLiteKV(source); err == nil {
				logger.Warn("starting with an empty progress database", zap.String("moved_to", moved))
				return kv
			}
		}
	}
	logger.Warn("keeping progress in memory for this session", zap.String("path", source.Path), zap.Error(err))
	return memoryBackend{progress.NewMemoryKV()}
}

// OpenStore opens source and wraps it in a hydrated progress store. The
// returned Backend must be closed by the caller. The logger also goes to
// the store.
func OpenStore(source DataSource, logger *zap.Logger, opts ...progress.Option) (*progress.Store, Backend, error) {
	kv, err := Open(source, logger)
	if err != nil {
		return nil, nil, err
	}
	if logger != nil {
		opts = append([]progress.Option{progress.WithLogger(logger)}, opts...)
	}
	return progress.NewStore(kv, opts...), kv, nil
}
