package tour

import (
	"errors"
	"fmt"
	"sort"
)

// Registry is an immutable catalog of tours. It is built once at startup
// and handed to the components that need it; nothing can add or change a
// tour afterwards.
type Registry struct {
	order []string
	byID  map[string]Definition
	paths map[string]string // page path -> tour id
}

// NewRegistry validates defs and returns a registry holding private copies
// of them. Every invalid definition is reported.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]Definition, len(defs)),
		paths: make(map[string]string),
	}

	var errs []error
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := r.byID[d.ID]; dup {
			errs = append(errs, fmt.Errorf("%w: %s", ErrDuplicateID, d.ID))
			continue
		}
		r.byID[d.ID] = d.clone()
		r.order = append(r.order, d.ID)
		if d.Route != "" {
			if _, taken := r.paths[d.Route]; !taken {
				r.paths[d.Route] = d.ID
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

// MustRegistry is NewRegistry that panics on error. Intended for the
// built-in catalog and tests.
func MustRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a copy of the tour with the given id.
func (r *Registry) Get(id string) (Definition, bool) {
	if r == nil {
		return Definition{}, false
	}
	d, ok := r.byID[id]
	if !ok {
		return Definition{}, false
	}
	return d.clone(), true
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	if r == nil {
		return false
	}
	_, ok := r.byID[id]
	return ok
}

// StepCount returns the number of steps in tour id, or 0 if unknown.
func (r *Registry) StepCount(id string) int {
	if r == nil {
		return 0
	}
	return len(r.byID[id].Steps)
}

// StepAt returns step i of tour id without copying the whole tour.
func (r *Registry) StepAt(id string, i int) (Step, bool) {
	if r == nil {
		return Step{}, false
	}
	d, ok := r.byID[id]
	if !ok {
		return Step{}, false
	}
	s, ok := d.Step(i)
	return s.clone(), ok
}

// All returns copies of every tour in registration order.
func (r *Registry) All() []Definition {
	if r == nil {
		return nil
	}
	out := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// IDs returns the tour ids in registration order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	return append([]string(nil), r.order...)
}

// Len returns the number of tours.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Routes returns the page path to tour id map declared by the definitions.
func (r *Registry) Routes() Routes {
	if r == nil {
		return Routes{}
	}
	byPath := make(map[string]string, len(r.paths))
	byTour := make(map[string]string, len(r.paths))
	for path, id := range r.paths {
		byPath[path] = id
		if r.byID[id].CanNavigate() {
			byTour[id] = path
		}
	}
	return Routes{byPath: byPath, byTour: byTour}
}

// Routes maps page paths to the tour that auto-starts there, and tours back
// to the page the help center navigates to before launching them.
type Routes struct {
	byPath map[string]string
	byTour map[string]string
}

// NewRoutes builds routes from an explicit path -> tour id map. Every tour
// in the map is considered navigable.
func NewRoutes(pages map[string]string) Routes {
	byPath := make(map[string]string, len(pages))
	byTour := make(map[string]string, len(pages))
	for path, id := range pages {
		byPath[path] = id
		byTour[id] = path
	}
	return Routes{byPath: byPath, byTour: byTour}
}

// Merge returns routes with the entries of other layered on top. A tour
// whose page other hands to a different tour loses its way back to it.
func (r Routes) Merge(other Routes) Routes {
	out := Routes{byPath: make(map[string]string), byTour: make(map[string]string)}
	for k, v := range r.byPath {
		out.byPath[k] = v
	}
	for id, path := range r.byTour {
		if override, ok := other.byPath[path]; ok && override != id {
			continue
		}
		out.byTour[id] = path
	}
	for k, v := range other.byPath {
		out.byPath[k] = v
	}
	for k, v := range other.byTour {
		out.byTour[k] = v
	}
	return out
}

// TourFor returns the tour mapped to page path.
func (r Routes) TourFor(path string) (string, bool) {
	id, ok := r.byPath[path]
	return id, ok
}

// PathFor returns the page the help center should open before starting tourID.
func (r Routes) PathFor(tourID string) (string, bool) {
	path, ok := r.byTour[tourID]
	return path, ok
}

// Paths returns every mapped page path, sorted.
func (r Routes) Paths() []string {
	out := make([]string, 0, len(r.byPath))
	for p := range r.byPath {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
