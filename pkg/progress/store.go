package progress

import (
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/vanderheijden86/tourkit/pkg/debug"
	"github.com/vanderheijden86/tourkit/pkg/metrics"
)

// Persisted keys. The version segment changes whenever a value's encoding does.
const (
	KeyCompletedTours = "tourkit.v1.completed_tours"
	KeyVisitedPages   = "tourkit.v1.visited_pages"
	KeyFirstSession   = "tourkit.v1.first_session_done"
	KeyLastSeen       = "tourkit.v1.last_seen"
)

// AllKeys lists every key the store owns.
var AllKeys = []string{KeyCompletedTours, KeyVisitedPages, KeyFirstSession, KeyLastSeen}

const firstSessionMarker = "true"

// Record is a snapshot of the persisted progress.
type Record struct {
	CompletedTourIDs         []string  `json:"completed_tour_ids"`
	VisitedPagePaths         []string  `json:"visited_page_paths"`
	HasCompletedFirstSession bool      `json:"has_completed_first_session"`
	LastSeen                 time.Time `json:"last_seen,omitempty"`
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for persistence warnings.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source used for the last-seen timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store owns the progress record. Other components read it only through
// the query methods.
type Store struct {
	mu     sync.RWMutex
	kv     KV
	logger *zap.Logger
	now    func() time.Time

	completed        map[string]struct{}
	visited          map[string]struct{}
	firstSessionDone bool
	lastSeen         time.Time
}

// NewStore returns a store backed by kv and hydrated from it.
func NewStore(kv KV, opts ...Option) *Store {
	if kv == nil {
		kv = NewMemoryKV()
	}
	s := &Store{
		kv:        kv,
		logger:    debug.Logger(),
		now:       time.Now,
		completed: make(map[string]struct{}),
		visited:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Hydrate()
	return s
}

// Hydrate reloads the in-memory mirror from the repository. Missing,
// unreadable, or corrupt values are treated as absent.
func (s *Store) Hydrate() {
	defer metrics.Timer(metrics.Hydrate)()

	completed := s.readSet(KeyCompletedTours)
	visited := s.readSet(KeyVisitedPages)

	firstDone := false
	if v, ok := s.read(KeyFirstSession); ok {
		firstDone = v == firstSessionMarker
	}

	var lastSeen time.Time
	if v, ok := s.read(KeyLastSeen); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			lastSeen = time.UnixMilli(ms)
		} else {
			s.logger.Warn("progress: corrupt last-seen value", zap.String("value", v))
			metrics.HydrateFallback.Inc()
		}
	}

	s.mu.Lock()
	s.completed = completed
	s.visited = visited
	s.firstSessionDone = firstDone
	s.lastSeen = lastSeen
	s.mu.Unlock()
}

func (s *Store) read(key string) (string, bool) {
	v, err := s.kv.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("progress: read failed", zap.String("key", key), zap.Error(err))
			metrics.HydrateFallback.Inc()
		}
		return "", false
	}
	return v, true
}

func (s *Store) readSet(key string) map[string]struct{} {
	out := make(map[string]struct{})
	raw, ok := s.read(key)
	if !ok {
		return out
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.logger.Warn("progress: corrupt payload", zap.String("key", key), zap.Error(err))
		metrics.HydrateFallback.Inc()
		return out
	}
	for _, it := range items {
		out[it] = struct{}{}
	}
	return out
}

// write persists one value. Failures are logged and dropped.
func (s *Store) write(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		s.logger.Warn("progress: write dropped", zap.String("key", key), zap.Error(err))
		metrics.PersistDropped.Inc()
	}
}

func (s *Store) writeSet(key string, set map[string]struct{}) {
	data, err := json.Marshal(sortedKeys(set))
	if err != nil {
		s.logger.Warn("progress: encode failed", zap.String("key", key), zap.Error(err))
		metrics.PersistDropped.Inc()
		return
	}
	s.write(key, string(data))
}

// IsCompleted reports whether tourID has been completed.
func (s *Store) IsCompleted(tourID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.completed[tourID]
	return ok
}

// IsPageVisited reports whether path has been visited.
func (s *Store) IsPageVisited(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.visited[path]
	return ok
}

// IsFirstSession reports whether the visitor has not yet completed any tour.
func (s *Store) IsFirstSession() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.firstSessionDone
}

// LastSeen returns the time of the most recent tour completion.
func (s *Store) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// MarkPageVisited records a visit to path. It reports whether this was the
// first visit; repeat visits do not touch storage.
func (s *Store) MarkPageVisited(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.visited[path]; ok {
		return false
	}
	s.visited[path] = struct{}{}
	s.writeSet(KeyVisitedPages, s.visited)
	return true
}

// CompleteTour records tourID as completed, closes the first session and
// stamps the last-seen time.
func (s *Store) CompleteTour(tourID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed[tourID] = struct{}{}
	s.writeSet(KeyCompletedTours, s.completed)

	if !s.firstSessionDone {
		s.firstSessionDone = true
		s.write(KeyFirstSession, firstSessionMarker)
	}

	s.lastSeen = s.now()
	s.write(KeyLastSeen, strconv.FormatInt(s.lastSeen.UnixMilli(), 10))
}

// ResetAll removes every persisted key and clears the mirror.
func (s *Store) ResetAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range AllKeys {
		if err := s.kv.Remove(key); err != nil {
			s.logger.Warn("progress: remove dropped", zap.String("key", key), zap.Error(err))
			metrics.PersistDropped.Inc()
		}
	}
	s.completed = make(map[string]struct{})
	s.visited = make(map[string]struct{})
	s.firstSessionDone = false
	s.lastSeen = time.Time{}
}

// Snapshot returns a copy of the current record.
func (s *Store) Snapshot() Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Record{
		CompletedTourIDs:         sortedKeys(s.completed),
		VisitedPagePaths:         sortedKeys(s.visited),
		HasCompletedFirstSession: s.firstSessionDone,
		LastSeen:                 s.lastSeen,
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
