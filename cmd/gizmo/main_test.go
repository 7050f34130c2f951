package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/classfile"
	"github.com/quarkusio/gizmo-sub001/conformance"
)

func TestMajorFor(t *testing.T) {
	tests := []struct {
		target  string
		want    uint16
		wantErr bool
	}{
		{"v1.8", 52, false},
		{"1.8", 52, false},
		{"v11", 55, false},
		{"17", 61, false},
		{"v17.0.2", 61, false},
		{"v21", 65, false},
		{"v1.5", 0, true},
		{"v5", 0, true},
		{"java17", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := majorFor(tt.target)
		if (err != nil) != tt.wantErr {
			t.Errorf("majorFor(%q) error = %v, wantErr %v", tt.target, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("majorFor(%q) = %d, want %d", tt.target, got, tt.want)
		}
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gizmo.yaml")
	data := `
target: v1.8
trace: true
trace_filter: ["test/*.test"]
debug_nops: true
verify: false
output: out
tick_limit: 5000000000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	off := false
	want := &Config{
		Target:      "v1.8",
		Trace:       true,
		TraceFilter: []string{"test/*.test"},
		DebugNops:   true,
		Verify:      &off,
		Output:      "out",
		TickLimit:   5000000000,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config (-want +got):\n%s", diff)
	}
	if cfg.verifyEnabled() {
		t.Error("verify: false ignored")
	}
	if !(&Config{}).verifyEnabled() {
		t.Error("verification off by default")
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gizmo.yaml")
	if err := os.WriteFile(path, []byte("tragte: v17\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Error("misspelled key accepted")
	}
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"add ints":                       "add_ints",
		"Finally runs once, every exit!": "finally_runs_once_every_exit",
		"  leading":                      "leading",
	}
	for in, want := range tests {
		if got := slug(in); got != want {
			t.Errorf("slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitFilters(t *testing.T) {
	if diff := cmp.Diff([]string{"a/*", "b.run"}, splitFilters(" a/* , b.run")); diff != "" {
		t.Errorf("filters (-want +got):\n%s", diff)
	}
	if splitFilters("") != nil {
		t.Error("empty filter list is not nil")
	}
}

const suite = `
name: cli
tests:
  - name: answer
    method: {desc: "()I"}
    body:
      - return: 42
    runs:
      - {expect: {value: 42}}
  - name: broken
    method: {desc: "()I"}
    expect_error: type mismatch
    body:
      - return: x
`

func writeSuite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.yaml")
	if err := os.WriteFile(path, []byte(suite), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBuildWritesClassFiles(t *testing.T) {
	path := writeSuite(t)
	out := t.TempDir()
	cfg := &Config{Target: "v11", Output: out}
	runner, err := newRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := runCommand("build", []string{path}, runner, cfg, ""); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(out, "cli", "answer.class"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := classfile.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if c.Major != 55 {
		t.Errorf("major %d, want 55", c.Major)
	}
	if c.FindMethod(conformance.MethodName, "()I") == nil {
		t.Error("generated method missing from the class file")
	}
	if _, err := os.Stat(filepath.Join(out, "cli", "broken.class")); !os.IsNotExist(err) {
		t.Errorf("class written for a test expecting an error: %v", err)
	}
}

func TestBuildNeedsOutput(t *testing.T) {
	cfg := &Config{Target: DefaultTarget}
	runner, err := newRunner(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if err := runCommand("build", []string{writeSuite(t)}, runner, cfg, ""); err == nil {
		t.Error("build without an output directory succeeded")
	}
}

func TestUnknownCommand(t *testing.T) {
	cfg := &Config{Target: DefaultTarget}
	runner, _ := newRunner(cfg)
	if err := runCommand("frob", []string{writeSuite(t)}, runner, cfg, ""); err == nil {
		t.Error("unknown command accepted")
	}
}

func TestHTMLReport(t *testing.T) {
	tests, err := conformance.LoadFile(writeSuite(t))
	if err != nil {
		t.Fatal(err)
	}
	results := conformance.NewRunner().RunAll(tests)

	md := markdownReport(results)
	for _, want := range []string{"# gizmo report", "2 passed, 0 failed", "### answer", "ireturn"} {
		if !bytes.Contains(md, []byte(want)) {
			t.Errorf("markdown report lacks %q:\n%s", want, md)
		}
	}

	path := filepath.Join(t.TempDir(), "report.html")
	if err := writeHTMLReport(path, results); err != nil {
		t.Fatal(err)
	}
	page, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h1>gizmo report</h1>", "<h3>answer</h3>", "<pre><code>"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("HTML report lacks %q", want)
		}
	}
}
