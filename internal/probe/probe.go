// Package probe locates probe scripts on disk.
package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Extension is the file extension of probe scripts.
const Extension = ".pxl"

// Probe is a query script referenced by logical name.
type Probe struct {
	Name string
	Path string

	source *string
}

// Source reads the script text on first use.
func (p *Probe) Source() (string, error) {
	if p.source != nil {
		return *p.source, nil
	}
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return "", fmt.Errorf("read probe %s: %w", p.Name, err)
	}
	s := string(data)
	p.source = &s
	return s, nil
}

// Location is the result of resolving a probe name. A probe that does not
// exist yet is a normal outcome, not an error.
type Location struct {
	Exists bool
	Path   string
}

// Locator resolves probe names to script paths under a directory.
type Locator struct {
	dir string
}

// NewLocator creates a Locator rooted at dir.
func NewLocator(dir string) *Locator {
	return &Locator{dir: dir}
}

// Dir returns the directory the locator searches.
func (l *Locator) Dir() string {
	return l.dir
}

// Locate resolves name to a path. The name may omit the script extension.
func (l *Locator) Locate(name string) Location {
	path := l.path(name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return Location{Exists: false, Path: path}
	}
	return Location{Exists: true, Path: path}
}

// Open returns a Probe for a located script.
func (l *Locator) Open(name string) (*Probe, Location) {
	loc := l.Locate(name)
	if !loc.Exists {
		return nil, loc
	}
	return &Probe{Name: strings.TrimSuffix(name, Extension), Path: loc.Path}, loc
}

// Discover returns the names of all scripts in the directory, sorted.
// A missing directory yields no names.
func (l *Locator) Discover() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read probes directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != Extension {
			continue
		}
		names = append(names, strings.TrimSuffix(entry.Name(), Extension))
	}
	sort.Strings(names)
	return names, nil
}

func (l *Locator) path(name string) string {
	if filepath.Ext(name) != Extension {
		name += Extension
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.dir, name)
}
