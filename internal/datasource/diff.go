package datasource

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vanderheijden86/tourkit/pkg/progress"
)

// SourceDiff represents differences between the progress held by two backends
type SourceDiff struct {
	SourceA string
	SourceB string
	// ToursMissingInA are completed tour ids present in B but not in A
	ToursMissingInA []string
	// ToursMissingInB are completed tour ids present in A but not in B
	ToursMissingInB []string
	PagesMissingInA []string
	PagesMissingInB []string
	// FirstSessionMismatch is set when only one side has finished its first session
	FirstSessionMismatch bool
}

// HasInconsistencies returns true if there are any differences between sources
func (d SourceDiff) HasInconsistencies() bool {
	return len(d.ToursMissingInA) > 0 || len(d.ToursMissingInB) > 0 ||
		len(d.PagesMissingInA) > 0 || len(d.PagesMissingInB) > 0 ||
		d.FirstSessionMismatch
}

// Summary returns a human-readable summary of the differences
func (d SourceDiff) Summary() string {
	if !d.HasInconsistencies() {
		return fmt.Sprintf("Sources match (%s, %s)", d.SourceA, d.SourceB)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Differences between %s and %s:\n", d.SourceA, d.SourceB)
	writeList := func(label string, ids []string) {
		if len(ids) == 0 {
			return
		}
		fmt.Fprintf(&b, "  - %d %s\n", len(ids), label)
		if len(ids) <= 5 {
			for _, id := range ids {
				fmt.Fprintf(&b, "    - %s\n", id)
			}
		}
	}
	writeList(fmt.Sprintf("completed tours only in %s", d.SourceB), d.ToursMissingInA)
	writeList(fmt.Sprintf("completed tours only in %s", d.SourceA), d.ToursMissingInB)
	writeList(fmt.Sprintf("visited pages only in %s", d.SourceB), d.PagesMissingInA)
	writeList(fmt.Sprintf("visited pages only in %s", d.SourceA), d.PagesMissingInB)
	if d.FirstSessionMismatch {
		b.WriteString("  - first-session flag differs\n")
	}
	return b.String()
}

// DetectInconsistencies compares two progress records
func DetectInconsistencies(a, b progress.Record, sourceA, sourceB string) SourceDiff {
	diff := SourceDiff{SourceA: sourceA, SourceB: sourceB}
	diff.ToursMissingInB, diff.ToursMissingInA = setDifference(a.CompletedTourIDs, b.CompletedTourIDs)
	diff.PagesMissingInB, diff.PagesMissingInA = setDifference(a.VisitedPagePaths, b.VisitedPagePaths)
	diff.FirstSessionMismatch = a.HasCompletedFirstSession != b.HasCompletedFirstSession
	return diff
}

// setDifference returns (a minus b, b minus a), preserving input order.
func setDifference(a, b []string) (onlyA, onlyB []string) {
	inA := make(map[string]struct{}, len(a))
	for _, v := range a {
		inA[v] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, v := range b {
		inB[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := inB[v]; !ok {
			onlyA = append(onlyA, v)
		}
	}
	for _, v := range b {
		if _, ok := inA[v]; !ok {
			onlyB = append(onlyB, v)
		}
	}
	return onlyA, onlyB
}

// CompareSources opens and compares two backends
func CompareSources(sourceA, sourceB DataSource) (*SourceDiff, error) {
	recA, err := readRecord(sourceA)
	if err != nil {
		return nil, fmt.Errorf("failed to load source A (%s): %w", sourceA.Type, err)
	}
	recB, err := readRecord(sourceB)
	if err != nil {
		return nil, fmt.Errorf("failed to load source B (%s): %w", sourceB.Type, err)
	}
	diff := DetectInconsistencies(recA, recB, sourceA.String(), sourceB.String())
	return &diff, nil
}

func readRecord(source DataSource) (progress.Record, error) {
	kv, err := Open(source, nil)
	if err != nil {
		return progress.Record{}, err
	}
	defer kv.Close()
	return progress.NewStore(kv).Snapshot(), nil
}

// Migrate copies every progress key from src to dst, overwriting what dst
// holds. It returns the number of keys copied.
func Migrate(src, dst progress.KV) (int, error) {
	copied := 0
	for _, key := range progress.AllKeys {
		v, err := src.Get(key)
		if err != nil {
			if errors.Is(err, progress.ErrNotFound) {
				if rmErr := dst.Remove(key); rmErr != nil {
					return copied, fmt.Errorf("clearing %s: %w", key, rmErr)
				}
				continue
			}
			return copied, fmt.Errorf("reading %s: %w", key, err)
		}
		if err := dst.Set(key, v); err != nil {
			return copied, fmt.Errorf("writing %s: %w", key, err)
		}
		copied++
	}
	return copied, nil
}
