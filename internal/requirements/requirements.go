// Package requirements holds the declarative record of what each probe
// type must contain and produce.
package requirements

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jandubois/probecheck/internal/check"
)

const (
	// DefaultMaxDuration is the budget for a quick validation run.
	DefaultMaxDuration = 1000 * time.Millisecond

	// DefaultTimeout is the hard limit for one CLI invocation.
	DefaultTimeout = 30 * time.Second
)

// Requirement describes one probe type. It is immutable once registered.
type Requirement struct {
	Name        string            `yaml:"name"`
	Script      string            `yaml:"script,omitempty"`
	Markers     []string          `yaml:"markers"`
	Columns     []string          `yaml:"columns"`
	Flags       []check.Flag      `yaml:"flags"`
	MaxDuration time.Duration     `yaml:"max_duration"`
	Timeout     time.Duration     `yaml:"timeout"`
	Env         map[string]string `yaml:"env,omitempty"`
}

// ScriptName is the name the locator resolves; it defaults to Name.
func (r Requirement) ScriptName() string {
	if r.Script != "" {
		return r.Script
	}
	return r.Name
}

// Validate checks that the record is usable.
func (r Requirement) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.MaxDuration <= 0 {
		return fmt.Errorf("%s: max_duration must be positive, got %v", r.Name, r.MaxDuration)
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("%s: timeout must be positive, got %v", r.Name, r.Timeout)
	}
	for i, f := range r.Flags {
		if f.Name == "" {
			return fmt.Errorf("%s: flags[%d]: name is required", r.Name, i)
		}
	}
	return nil
}

func (r Requirement) withDefaults() Requirement {
	if r.MaxDuration == 0 {
		r.MaxDuration = DefaultMaxDuration
	}
	if r.Timeout == 0 {
		r.Timeout = DefaultTimeout
	}
	return r
}

// MarshalJSON renders durations in milliseconds.
func (r Requirement) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name          string            `json:"name"`
		Script        string            `json:"script"`
		Markers       []string          `json:"markers"`
		Columns       []string          `json:"columns"`
		Flags         []check.Flag      `json:"flags"`
		MaxDurationMs int64             `json:"max_duration_ms"`
		TimeoutMs     int64             `json:"timeout_ms"`
		Env           map[string]string `json:"env,omitempty"`
	}{
		Name:          r.Name,
		Script:        r.ScriptName(),
		Markers:       r.Markers,
		Columns:       r.Columns,
		Flags:         r.Flags,
		MaxDurationMs: r.MaxDuration.Milliseconds(),
		TimeoutMs:     r.Timeout.Milliseconds(),
		Env:           r.Env,
	})
}

// Catalog holds requirements by probe name.
// It is safe for concurrent use.
type Catalog struct {
	mu   sync.RWMutex
	reqs map[string]Requirement
}

// NewCatalog creates an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{reqs: make(map[string]Requirement)}
}

// Register adds a requirement. Returns an error if the name is taken.
func (c *Catalog) Register(r Requirement) error {
	r = r.withDefaults()
	if err := r.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.reqs[r.Name]; exists {
		return fmt.Errorf("probe %q is already registered", r.Name)
	}
	c.reqs[r.Name] = r
	return nil
}

// Override adds or replaces a requirement.
func (c *Catalog) Override(r Requirement) error {
	r = r.withDefaults()
	if err := r.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reqs[r.Name] = r
	return nil
}

// Get returns the requirement for name.
func (c *Catalog) Get(name string) (Requirement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.reqs[name]
	return r, ok
}

// Names returns all registered probe names, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.reqs))
	for name := range c.reqs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns every requirement ordered by name.
func (c *Catalog) All() []Requirement {
	names := c.Names()

	c.mu.RLock()
	defer c.mu.RUnlock()
	all := make([]Requirement, 0, len(names))
	for _, name := range names {
		all = append(all, c.reqs[name])
	}
	return all
}
