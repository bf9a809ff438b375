package tour

import (
	"embed"
	"fmt"
	"path"
)

//go:embed tours/*.yaml
var builtinFS embed.FS

// builtinFiles lists the shipped tours in catalog order.
var builtinFiles = []string{
	"dashboard.yaml",
	"literature.yaml",
	"student_interface.yaml",
	"projects.yaml",
	"groups.yaml",
}

// Built-in tour ids.
const (
	DashboardIntro     = "dashboard-intro"
	LiteratureUpload   = "literature-upload"
	StudentInterface   = "student-interface"
	ProjectsManagement = "projects-management"
	GroupsJoin         = "groups-join"
)

// Builtin returns the tours shipped with tourkit.
func Builtin() ([]Definition, error) {
	var all []Definition
	for _, name := range builtinFiles {
		data, err := builtinFS.ReadFile(path.Join("tours", name))
		if err != nil {
			return nil, fmt.Errorf("reading builtin %s: %w", name, err)
		}
		defs, err := Parse(data, FormatYAML)
		if err != nil {
			return nil, fmt.Errorf("builtin %s: %w", name, err)
		}
		all = append(all, defs...)
	}
	return all, nil
}

// BuiltinRegistry returns a registry over the shipped tours.
func BuiltinRegistry() (*Registry, error) {
	defs, err := Builtin()
	if err != nil {
		return nil, err
	}
	return NewRegistry(defs...)
}
