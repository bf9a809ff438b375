package progress

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/vanderheijden86/tourkit/pkg/metrics"
)

// countingKV wraps a MemoryKV and counts writes.
type countingKV struct {
	*MemoryKV
	sets int
}

func (c *countingKV) Set(key, value string) error {
	c.sets++
	return c.MemoryKV.Set(key, value)
}

// brokenKV fails every operation.
type brokenKV struct{}

func (brokenKV) Get(string) (string, error) { return "", errors.New("disk on fire") }
func (brokenKV) Set(string, string) error   { return errors.New("disk on fire") }
func (brokenKV) Remove(string) error        { return errors.New("disk on fire") }

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestStore_FreshVisitor(t *testing.T) {
	s := NewStore(NewMemoryKV())
	if !s.IsFirstSession() {
		t.Error("fresh store should be in first session")
	}
	if s.IsCompleted("dashboard-intro") {
		t.Error("fresh store should have no completions")
	}
	if s.IsPageVisited("/dashboard") {
		t.Error("fresh store should have no visits")
	}
	if !s.LastSeen().IsZero() {
		t.Errorf("expected zero last-seen, got %v", s.LastSeen())
	}
}

func TestStore_CompleteTour(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	kv := NewMemoryKV()
	s := NewStore(kv, WithClock(fixedClock(now)))

	s.CompleteTour("dashboard-intro")

	if !s.IsCompleted("dashboard-intro") {
		t.Error("expected tour completed")
	}
	if s.IsFirstSession() {
		t.Error("completion should close the first session")
	}
	if !s.LastSeen().Equal(now) {
		t.Errorf("expected last-seen %v, got %v", now, s.LastSeen())
	}

	v, err := kv.Get(KeyCompletedTours)
	if err != nil || v != `["dashboard-intro"]` {
		t.Errorf("unexpected persisted payload %q (%v)", v, err)
	}
	if v, _ := kv.Get(KeyLastSeen); v != "1700000000000" {
		t.Errorf("unexpected last-seen payload %q", v)
	}
}

func TestStore_MarkPageVisited_WritesOnce(t *testing.T) {
	kv := &countingKV{MemoryKV: NewMemoryKV()}
	s := NewStore(kv)

	if !s.MarkPageVisited("/literature") {
		t.Error("first visit should report true")
	}
	if s.MarkPageVisited("/literature") {
		t.Error("repeat visit should report false")
	}
	if kv.sets != 1 {
		t.Errorf("expected exactly one write, got %d", kv.sets)
	}
}

func TestStore_RoundTripThroughKV(t *testing.T) {
	now := time.UnixMilli(1_650_000_000_000)
	kv := NewMemoryKV()
	a := NewStore(kv, WithClock(fixedClock(now)))
	a.MarkPageVisited("/dashboard")
	a.MarkPageVisited("/groups")
	a.CompleteTour("groups-join")

	b := NewStore(kv)
	want := Record{
		CompletedTourIDs:         []string{"groups-join"},
		VisitedPagePaths:         []string{"/dashboard", "/groups"},
		HasCompletedFirstSession: true,
		LastSeen:                 now,
	}
	if diff := cmp.Diff(want, b.Snapshot(), cmpopts.EquateApproxTime(time.Millisecond)); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_CorruptPayloadHydratesEmpty(t *testing.T) {
	metrics.ResetAll()
	kv := NewMemoryKV()
	_ = kv.Set(KeyCompletedTours, "{not json")
	_ = kv.Set(KeyVisitedPages, `["/ok"]`)
	_ = kv.Set(KeyLastSeen, "yesterday")

	s := NewStore(kv)
	if s.IsCompleted("anything") {
		t.Error("corrupt payload should hydrate as empty")
	}
	if !s.IsPageVisited("/ok") {
		t.Error("healthy keys should still hydrate")
	}
	if got := metrics.HydrateFallback.Value(); got != 2 {
		t.Errorf("expected 2 hydrate fallbacks, got %d", got)
	}
}

func TestStore_WriteFailuresAreDropped(t *testing.T) {
	metrics.ResetAll()
	core, logs := observer.New(zapcore.WarnLevel)
	s := NewStore(brokenKV{}, WithLogger(zap.New(core)))

	s.CompleteTour("x")
	s.MarkPageVisited("/x")

	// The mirror still answers even though nothing persisted.
	if !s.IsCompleted("x") || !s.IsPageVisited("/x") {
		t.Error("in-memory state should survive write failures")
	}
	if metrics.PersistDropped.Value() == 0 {
		t.Error("expected dropped writes to be counted")
	}
	if logs.FilterMessage("progress: write dropped").Len() == 0 {
		t.Error("expected write failures to be logged")
	}
}

func TestStore_ResetAll(t *testing.T) {
	kv := NewMemoryKV()
	_ = kv.Set("unrelated", "keep")
	s := NewStore(kv)
	s.CompleteTour("a")
	s.MarkPageVisited("/a")

	s.ResetAll()

	if !s.IsFirstSession() || s.IsCompleted("a") || s.IsPageVisited("/a") {
		t.Error("reset should clear the mirror")
	}
	if diff := cmp.Diff([]string{"unrelated"}, kv.Keys()); diff != "" {
		t.Errorf("reset should only remove owned keys (-want +got):\n%s", diff)
	}
}

func TestStore_HydrateMatchesMirror(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kv := NewMemoryKV()
		s := NewStore(kv, WithClock(fixedClock(time.UnixMilli(42))))
		ids := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,6}`)).Draw(t, "ids")
		paths := rapid.SliceOf(rapid.StringMatching(`/[a-z]{1,6}`)).Draw(t, "paths")
		for _, id := range ids {
			s.CompleteTour(id)
		}
		for _, p := range paths {
			s.MarkPageVisited(p)
		}

		fresh := NewStore(kv)
		if diff := cmp.Diff(s.Snapshot(), fresh.Snapshot()); diff != "" {
			t.Fatalf("rehydrated store differs (-mirror +fresh):\n%s", diff)
		}
	})
}
