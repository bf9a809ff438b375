package tour

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/tourkit/pkg/metrics"
)

// catalog is the on-disk shape of a file holding several tours.
type catalog struct {
	Tours []Definition `yaml:"tours" json:"tours"`
}

// Format is a catalog encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFor picks the encoding from a file extension.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse decodes tours from data. A document may be a single tour or a
// catalog with a top-level "tours" list.
func Parse(data []byte, format Format) ([]Definition, error) {
	var c catalog
	var single Definition

	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, fmt.Errorf("parsing yaml catalog: %w", err)
		}
		if len(c.Tours) == 0 {
			if err := yaml.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("parsing yaml tour: %w", err)
			}
		}
	case FormatJSON:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			if err := json.Unmarshal(trimmed, &c.Tours); err != nil {
				return nil, fmt.Errorf("parsing json tour list: %w", err)
			}
			break
		}
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return nil, fmt.Errorf("parsing json catalog: %w", err)
		}
		if len(c.Tours) == 0 {
			if err := json.Unmarshal(trimmed, &single); err != nil {
				return nil, fmt.Errorf("parsing json tour: %w", err)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	if len(c.Tours) > 0 {
		return c.Tours, nil
	}
	if single.ID == "" && len(single.Steps) == 0 {
		return nil, nil
	}
	return []Definition{single}, nil
}

// LoadFile reads tours from a YAML or JSON file.
func LoadFile(path string) ([]Definition, error) {
	format, ok := FormatFor(path)
	if !ok {
		return nil, fmt.Errorf("%s: unsupported extension", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	defs, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// LoadDir reads every catalog file in dir concurrently. Results are merged
// in file-name order so the registry order is stable.
func LoadDir(ctx context.Context, dir string) ([]Definition, error) {
	defer metrics.Timer(metrics.CatalogLoad)()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFor(e.Name()); ok {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	results := make([][]Definition, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for i, path := range files {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			defs, err := LoadFile(path)
			if err != nil {
				return err
			}
			results[i] = defs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Definition
	for _, defs := range results {
		all = append(all, defs...)
	}
	return all, nil
}

// Load reads tours from a file or a directory.
func Load(ctx context.Context, path string) ([]Definition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog: %w", err)
	}
	if info.IsDir() {
		return LoadDir(ctx, path)
	}
	return LoadFile(path)
}
