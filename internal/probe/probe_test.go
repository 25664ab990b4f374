package probe

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeScript(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "cpu_throttle_detector.pxl", "px.export(df)")
	if err := os.Mkdir(filepath.Join(dir, "folder.pxl"), 0755); err != nil {
		t.Fatal(err)
	}

	l := NewLocator(dir)

	tests := []struct {
		name   string
		input  string
		exists bool
		path   string
	}{
		{"bare name", "cpu_throttle_detector", true, path},
		{"with extension", "cpu_throttle_detector.pxl", true, path},
		{"absolute path", path, true, path},
		{"absent", "pod_creation_trace", false, filepath.Join(dir, "pod_creation_trace.pxl")},
		{"directory is not a probe", "folder", false, filepath.Join(dir, "folder.pxl")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc := l.Locate(tt.input)
			if loc.Exists != tt.exists {
				t.Errorf("expected exists=%v, got %v", tt.exists, loc.Exists)
			}
			if loc.Path != tt.path {
				t.Errorf("expected path %q, got %q", tt.path, loc.Path)
			}
		})
	}
}

func TestOpenReadsSourceLazily(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "memory_pressure_monitor.pxl", "first")

	p, loc := NewLocator(dir).Open("memory_pressure_monitor")
	if p == nil || !loc.Exists {
		t.Fatal("expected probe to be found")
	}
	if p.Name != "memory_pressure_monitor" {
		t.Errorf("unexpected name %q", p.Name)
	}

	// Rewrite before the first read; the probe must see the new content.
	if err := os.WriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}
	src, err := p.Source()
	if err != nil {
		t.Fatalf("Source failed: %v", err)
	}
	if src != "second" {
		t.Errorf("expected %q, got %q", "second", src)
	}
}

func TestOpenMissing(t *testing.T) {
	p, loc := NewLocator(t.TempDir()).Open("nope")
	if p != nil {
		t.Error("expected nil probe")
	}
	if loc.Exists {
		t.Error("expected exists=false")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeScript(t, dir, "network_issue_finder.pxl", "")
	writeScript(t, dir, "cpu_throttle_detector.pxl", "")
	writeScript(t, dir, "README.md", "")

	names, err := NewLocator(dir).Discover()
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	expected := []string{"cpu_throttle_detector", "network_issue_finder"}
	if !reflect.DeepEqual(names, expected) {
		t.Errorf("expected %v, got %v", expected, names)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	names, err := NewLocator(filepath.Join(t.TempDir(), "absent")).Discover()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no names, got %v", names)
	}
}
