package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/tourkit/pkg/capability"
	"github.com/vanderheijden86/tourkit/pkg/progress"
	"github.com/vanderheijden86/tourkit/pkg/tour"
)

// isolate points config and state at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(dir, "state"))
	t.Setenv("TOURKIT_STORAGE", "")
	t.Setenv("TOURKIT_TIER", "")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-file", filepath.Join(t.TempDir(), "log.json")}, args...))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, args...)
	if err != nil {
		t.Fatalf("tourkit %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

func TestValidate_Builtin(t *testing.T) {
	isolate(t)
	out := mustRun(t, "validate")
	if !strings.Contains(out, "built-in: 5 tours OK") {
		t.Errorf("unexpected output:\n%s", out)
	}
	for _, id := range []string{tour.DashboardIntro, tour.LiteratureUpload, tour.GroupsJoin} {
		if !strings.Contains(out, id) {
			t.Errorf("expected %s in the listing", id)
		}
	}
}

func TestValidate_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "tours.yaml")
	catalog := `tours:
  - id: billing
    title: Billing
    route: /billing
    steps:
      - target: body
        title: Welcome
      - target: "#invoices"
        title: Invoices
`
	if err := os.WriteFile(path, []byte(catalog), 0o644); err != nil {
		t.Fatal(err)
	}
	out := mustRun(t, "validate", path)
	if !strings.Contains(out, "1 tours OK") || !strings.Contains(out, "/billing") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestValidate_Invalid(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("id: empty\ntitle: Empty\nsteps: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := run(t, "validate", path)
	if !errors.Is(err, tour.ErrEmptyTour) {
		t.Errorf("expected ErrEmptyTour, got %v", err)
	}
}

func TestProgress_CompleteShowReset(t *testing.T) {
	isolate(t)
	mustRun(t, "progress", "complete", tour.DashboardIntro)

	var rec progress.Record
	if err := json.Unmarshal([]byte(mustRun(t, "progress", "show", "--json")), &rec); err != nil {
		t.Fatalf("show --json: %v", err)
	}
	if len(rec.CompletedTourIDs) != 1 || rec.CompletedTourIDs[0] != tour.DashboardIntro {
		t.Errorf("expected dashboard-intro completed, got %+v", rec)
	}

	mustRun(t, "progress", "reset", "--yes")
	if out := mustRun(t, "progress", "show"); !strings.Contains(out, "Completed tours (0)") {
		t.Errorf("expected no completed tours after reset:\n%s", out)
	}
}

func TestProgress_CompleteUnknown(t *testing.T) {
	isolate(t)
	_, err := run(t, "progress", "complete", "nope")
	if !errors.Is(err, tour.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProgress_ResetNeedsTerminal(t *testing.T) {
	isolate(t)
	orig := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = orig }()

	if _, err := run(t, "progress", "reset"); err == nil {
		t.Error("expected reset without --yes to fail off a terminal")
	}
}

func TestProgress_MigrateAndDiff(t *testing.T) {
	isolate(t)
	mustRun(t, "progress", "complete", tour.GroupsJoin)

	if out := mustRun(t, "progress", "migrate", "--to", "sqlite"); !strings.HasPrefix(out, "Copied ") {
		t.Errorf("unexpected migrate output: %q", out)
	}
	if out := mustRun(t, "progress", "diff", "--against", "sqlite"); !strings.Contains(out, "Sources match") {
		t.Errorf("expected the migrated backend to match:\n%s", out)
	}
	if out := mustRun(t, "progress", "diff", "--against", "memory"); !strings.Contains(out, tour.GroupsJoin) {
		t.Errorf("expected the empty backend to miss groups-join:\n%s", out)
	}
	if _, err := run(t, "progress", "migrate", "--to", "file"); err == nil {
		t.Error("expected migrating onto itself to fail")
	}
}

func TestTier_Forced(t *testing.T) {
	isolate(t)
	t.Setenv("TOURKIT_TIER", "low")

	var rep tierReport
	if err := json.Unmarshal([]byte(mustRun(t, "tier", "--json")), &rep); err != nil {
		t.Fatal(err)
	}
	if rep.Tier != capability.TierLow || !rep.Forced {
		t.Errorf("expected a forced low tier, got %+v", rep)
	}
	if rep.Visual != capability.ConfigFor(capability.TierLow) {
		t.Errorf("expected the low-tier visuals, got %+v", rep.Visual)
	}
}

func TestSnapshot(t *testing.T) {
	isolate(t)
	reg, err := tour.BuiltinRegistry()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()

	out := mustRun(t, "snapshot", "--tour", tour.DashboardIntro, "--out", dir)
	paths := strings.Fields(out)
	if len(paths) != reg.StepCount(tour.DashboardIntro) {
		t.Fatalf("expected one file per step, got %v", paths)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Contains(data, []byte("<svg")) {
			t.Errorf("%s is not an SVG", p)
		}
	}

	out = mustRun(t, "snapshot", "--tour", tour.DashboardIntro, "--out", dir, "--format", "png", "--step", "1", "--tier", "low")
	want := filepath.Join(dir, tour.DashboardIntro+"-01.png")
	if strings.TrimSpace(out) != want {
		t.Errorf("expected %s, got %q", want, out)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("expected a PNG file")
	}
}

func TestSnapshot_Hooks(t *testing.T) {
	dir := isolate(t)
	t.Chdir(dir)
	if err := os.MkdirAll(filepath.Join(dir, ".tourkit"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg := `hooks:
  post-snapshot:
    - name: count
      command: echo "$TOURKIT_TOUR_ID $TOURKIT_FRAME_COUNT" > count.txt
`
	if err := os.WriteFile(filepath.Join(dir, ".tourkit", "hooks.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	mustRun(t, "snapshot", "--tour", tour.GroupsJoin, "--out", "shots")
	data, err := os.ReadFile(filepath.Join(dir, "count.txt"))
	if err != nil {
		t.Fatalf("post-snapshot hook did not run: %v", err)
	}
	reg, _ := tour.BuiltinRegistry()
	want := fmt.Sprintf("%s %d", tour.GroupsJoin, reg.StepCount(tour.GroupsJoin))
	if strings.TrimSpace(string(data)) != want {
		t.Errorf("expected %q, got %q", want, data)
	}

	if err := os.Remove(filepath.Join(dir, "count.txt")); err != nil {
		t.Fatal(err)
	}
	mustRun(t, "snapshot", "--tour", tour.GroupsJoin, "--out", "shots", "--no-hooks")
	if _, err := os.Stat(filepath.Join(dir, "count.txt")); !os.IsNotExist(err) {
		t.Error("--no-hooks should skip the hooks")
	}
}

func TestSnapshot_Errors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cases := [][]string{
		{"snapshot", "--tour", tour.DashboardIntro, "--out", dir, "--format", "gif"},
		{"snapshot", "--tour", "missing", "--out", dir},
		{"snapshot", "--tour", tour.DashboardIntro, "--out", dir, "--step", "99"},
		{"snapshot", "--out", dir},
	}
	for _, args := range cases {
		if _, err := run(t, args...); err == nil {
			t.Errorf("tourkit %s: expected an error", strings.Join(args, " "))
		}
	}
}

func TestConfig_InvalidBackend(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", path, "progress", "show"); err == nil {
		t.Error("expected an unknown backend to be rejected")
	}
}
