package tour

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanderheijden86/tourkit/pkg/layout"
)

func boolPtr(b bool) *bool { return &b }

func sampleTour(id string, steps int) Definition {
	d := Definition{ID: id, Title: id}
	for i := 0; i < steps; i++ {
		d.Steps = append(d.Steps, Step{Target: "#s", Title: "step"})
	}
	return d
}

func TestStep_Defaults(t *testing.T) {
	s := Step{Target: "#x"}
	if s.PreferredPlacement() != layout.PlacementBottom {
		t.Errorf("expected bottom default, got %s", s.PreferredPlacement())
	}
	if s.Shape() != layout.ShapeRect {
		t.Errorf("expected rect default, got %s", s.Shape())
	}
	if !s.Pulse() {
		t.Error("expected pulse on by default")
	}
	s.HighlightPulse = boolPtr(false)
	if s.Pulse() {
		t.Error("expected explicit false to disable pulse")
	}
}

func TestStep_Untargeted(t *testing.T) {
	tests := []struct {
		step Step
		want bool
	}{
		{Step{Target: "body"}, true},
		{Step{Target: ""}, true},
		{Step{Target: "#x", SpotlightShape: layout.ShapeNone}, true},
		{Step{Target: "#x", SpotlightShape: layout.ShapeCircle}, false},
		{Step{Target: "#x"}, false},
	}
	for _, tt := range tests {
		if got := tt.step.Untargeted(); got != tt.want {
			t.Errorf("Untargeted(%+v) = %v, want %v", tt.step, got, tt.want)
		}
	}
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want error
	}{
		{"ok", sampleTour("a", 2), nil},
		{"empty id", Definition{Steps: []Step{{Target: "#x"}}}, ErrEmptyID},
		{"no steps", Definition{ID: "a"}, ErrEmptyTour},
		{"bad placement", Definition{ID: "a", Steps: []Step{{Target: "#x", Placement: "middle"}}}, ErrInvalidValue},
		{"bad shape", Definition{ID: "a", Steps: []Step{{Target: "#x", SpotlightShape: "star"}}}, ErrInvalidValue},
		{"bad action", Definition{ID: "a", Steps: []Step{{Target: "#x", Action: "hover"}}}, ErrInvalidValue},
		{"action without target", Definition{ID: "a", Steps: []Step{{Target: "body", Action: ActionClick}}}, ErrInvalidValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(sampleTour("a", 1), sampleTour("a", 2))
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
}

func TestRegistry_IsImmutable(t *testing.T) {
	def := sampleTour("a", 2)
	r := MustRegistry(def)

	// Mutating the caller's copy must not leak into the registry.
	def.Steps[0].Title = "changed"
	got, _ := r.Get("a")
	if got.Steps[0].Title != "step" {
		t.Errorf("registry picked up caller mutation: %q", got.Steps[0].Title)
	}

	// Mutating a returned copy must not leak either.
	got.Steps[1].Title = "changed"
	again, _ := r.Get("a")
	if again.Steps[1].Title != "step" {
		t.Errorf("registry picked up returned-copy mutation: %q", again.Steps[1].Title)
	}
}

func TestRegistry_Lookups(t *testing.T) {
	r := MustRegistry(sampleTour("a", 3), sampleTour("b", 1))

	if r.Len() != 2 {
		t.Errorf("expected 2 tours, got %d", r.Len())
	}
	if ids := r.IDs(); ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected registration order, got %v", ids)
	}
	if r.StepCount("a") != 3 || r.StepCount("zzz") != 0 {
		t.Errorf("unexpected step counts")
	}
	if _, ok := r.StepAt("a", 3); ok {
		t.Error("expected out-of-range step lookup to fail")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("expected missing tour lookup to fail")
	}
	var nilReg *Registry
	if nilReg.Has("a") || nilReg.Len() != 0 {
		t.Error("nil registry should be empty")
	}
}

func TestBuiltin(t *testing.T) {
	r, err := BuiltinRegistry()
	if err != nil {
		t.Fatalf("builtin catalog invalid: %v", err)
	}
	want := []string{DashboardIntro, LiteratureUpload, StudentInterface, ProjectsManagement, GroupsJoin}
	ids := r.IDs()
	if len(ids) != len(want) {
		t.Fatalf("expected %d tours, got %v", len(want), ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], ids[i])
		}
	}

	dash, _ := r.Get(DashboardIntro)
	if dash.Len() != 8 {
		t.Errorf("expected 8 dashboard steps, got %d", dash.Len())
	}
	if !dash.Steps[0].Untargeted() || dash.Steps[0].Placement != layout.PlacementCenter {
		t.Errorf("expected centred welcome step, got %+v", dash.Steps[0])
	}
}

func TestBuiltinRoutes(t *testing.T) {
	r, _ := BuiltinRegistry()
	routes := r.Routes()

	if id, ok := routes.TourFor("/dashboard"); !ok || id != DashboardIntro {
		t.Errorf("expected dashboard route, got %q %v", id, ok)
	}
	if id, ok := routes.TourFor("/student/project"); !ok || id != StudentInterface {
		t.Errorf("expected workspace route, got %q %v", id, ok)
	}
	if _, ok := routes.PathFor(StudentInterface); ok {
		t.Error("workspace tour must not be navigable")
	}
	if p, ok := routes.PathFor(GroupsJoin); !ok || p != "/groups" {
		t.Errorf("expected /groups, got %q", p)
	}
	if len(routes.Paths()) != 5 {
		t.Errorf("expected 5 mapped paths, got %v", routes.Paths())
	}
}

func TestRoutes_Merge(t *testing.T) {
	base := NewRoutes(map[string]string{"/a": "tour-a"})
	merged := base.Merge(NewRoutes(map[string]string{"/a": "tour-b", "/c": "tour-c"}))

	if id, _ := merged.TourFor("/a"); id != "tour-b" {
		t.Errorf("expected override, got %q", id)
	}
	if id, _ := base.TourFor("/a"); id != "tour-a" {
		t.Errorf("merge must not mutate the receiver, got %q", id)
	}
	if path, ok := merged.PathFor("tour-a"); ok {
		t.Errorf("tour-a lost its page to tour-b but still routes to %q", path)
	}
	if path, _ := merged.PathFor("tour-b"); path != "/a" {
		t.Errorf("expected tour-b routed to /a, got %q", path)
	}
	if path, _ := base.PathFor("tour-a"); path != "/a" {
		t.Errorf("merge must not mutate the receiver's reverse routes, got %q", path)
	}
}

func TestRoutes_MergeKeepsUntouchedReverseRoutes(t *testing.T) {
	base := NewRoutes(map[string]string{"/a": "tour-a", "/b": "tour-b"})
	merged := base.Merge(NewRoutes(map[string]string{"/a": "tour-a", "/c": "tour-c"}))

	for id, want := range map[string]string{"tour-a": "/a", "tour-b": "/b", "tour-c": "/c"} {
		if got, _ := merged.PathFor(id); got != want {
			t.Errorf("PathFor(%s): expected %q, got %q", id, want, got)
		}
	}
}

func TestParse_Formats(t *testing.T) {
	yamlSingle := []byte("id: a\nsteps:\n  - target: '#x'\n    title: hi\n")
	yamlCatalog := []byte("tours:\n  - id: a\n    steps: [{target: '#x'}]\n  - id: b\n    steps: [{target: body}]\n")
	jsonSingle := []byte(`{"id":"a","steps":[{"target":"#x","spotlightShape":"circle"}]}`)
	jsonList := []byte(`[{"id":"a","steps":[{"target":"#x"}]},{"id":"b","steps":[{"target":"#y"}]}]`)

	tests := []struct {
		name   string
		data   []byte
		format Format
		want   int
	}{
		{"yaml single", yamlSingle, FormatYAML, 1},
		{"yaml catalog", yamlCatalog, FormatYAML, 2},
		{"json single", jsonSingle, FormatJSON, 1},
		{"json list", jsonList, FormatJSON, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defs, err := Parse(tt.data, tt.format)
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if len(defs) != tt.want {
				t.Errorf("expected %d tours, got %d", tt.want, len(defs))
			}
		})
	}

	defs, _ := Parse(jsonSingle, FormatJSON)
	if defs[0].Steps[0].SpotlightShape != layout.ShapeCircle {
		t.Errorf("expected circle shape from json, got %q", defs[0].Steps[0].SpotlightShape)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"b.yaml":    "id: b\nsteps: [{target: '#b'}]\n",
		"a.json":    `{"id":"a","steps":[{"target":"#a"}]}`,
		"notes.txt": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	defs, err := LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(defs) != 2 || defs[0].ID != "a" || defs[1].ID != "b" {
		t.Errorf("expected [a b] in file order, got %+v", defs)
	}
}

func TestLoadDir_PropagatesParseErrors(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadDir(context.Background(), dir); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	if _, err := LoadFile("tours.toml"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
