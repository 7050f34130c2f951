package conformance

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/quarkusio/gizmo-sub001/codegen"
	"golang.org/x/tools/txtar"
)

func TestConformance(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("No tests loaded")
	}

	runner := NewRunner()
	results := runner.RunAll(tests)
	stats := ComputeStats(results)

	// Group results by file for organized output
	fileGroups := make(map[string][]TestResult)
	for _, result := range results {
		fileGroups[result.Test.File] = append(fileGroups[result.Test.File], result)
	}

	for file, fileResults := range fileGroups {
		t.Run(file, func(t *testing.T) {
			for _, result := range fileResults {
				t.Run(result.Test.Test.Name, func(t *testing.T) {
					if result.Skipped {
						t.Skipf("Skipped: %s", result.SkipReason)
					} else if !result.Passed {
						if result.Error != nil {
							t.Errorf("Test failed: %v", result.Error)
						} else {
							t.Error("Test failed")
						}
					}
				})
			}
		})
	}

	t.Logf("\n=== Summary ===\n%s", FormatStats(stats))
}

func TestLoadAllTests(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}

	files := make(map[string]bool)
	for _, test := range tests {
		if test.Test.Name == "" {
			t.Errorf("Test in %s has no name", test.File)
		}
		if test.File == "" {
			t.Errorf("Test %s has no file path", test.Test.Name)
		}
		if test.Suite.Class != "test/Suite" {
			t.Errorf("Test %s: class %q, want the default", test.Test.Name, test.Suite.Class)
		}
		files[test.File] = true
	}
	want := map[string]bool{
		"arithmetic.yaml": true,
		"control.yaml":    true,
		"errors.yaml":     true,
		"switch.yaml":     true,
		"try.yaml":        true,
	}
	if diff := cmp.Diff(want, files); diff != "" {
		t.Errorf("suite files (-want +got):\n%s", diff)
	}
}

func TestYAMLParsing(t *testing.T) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		t.Fatalf("YAML parsing failed: %v", err)
	}

	for _, test := range tests {
		if skipped, _ := test.Test.IsSkipped(); skipped {
			continue
		}
		// Each test must expect something
		if test.Test.ExpectError == "" && len(test.Test.Runs) == 0 {
			t.Errorf("Test %s in %s has no expectation", test.Test.Name, test.File)
		}
		if test.Test.Method.Desc == "" {
			t.Errorf("Test %s in %s has no method descriptor", test.Test.Name, test.File)
		}
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  string
	}{
		{"duplicate test", `
name: dup
tests:
  - {name: a, method: {desc: "()V"}}
  - {name: a, method: {desc: "()V"}}
`, "duplicate test a"},
		{"unnamed test", `
name: anon
tests:
  - {method: {desc: "()V"}}
`, "test without a name"},
		{"bad yaml", "name: [", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.err) {
				t.Errorf("Parse error %v, want one containing %q", err, tt.err)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown statement", "- frobnicate: 1"},
		{"unknown expression", "- return: {frobnicate: 1}"},
		{"unknown variable", "- return: {var: nope}"},
		{"unknown label", "- break: nope"},
		{"operand count", "- return: {add: [1]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := "name: bad\ntests:\n  - name: t\n    method: {desc: \"()I\"}\n    body:\n      " + tt.body + "\n"
			loaded, err := Parse([]byte(data))
			if err != nil {
				t.Fatal(err)
			}
			_, _, err = Generate(loaded[0], codegen.Config{})
			var se *SuiteError
			if !errors.As(err, &se) {
				t.Errorf("got %v, want a suite error", err)
			}
		})
	}
}

func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/golden/*.txtar")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no golden files")
	}
	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			contents := make(map[string][]byte)
			for _, f := range ar.Files {
				contents[f.Name] = f.Data
			}
			loaded, err := Parse(contents["suite.yaml"])
			if err != nil {
				t.Fatal(err)
			}
			result := NewRunner().Run(loaded[0])
			if !result.Passed {
				t.Fatalf("generation failed: %v", result.Error)
			}
			var buf bytes.Buffer
			if err := result.Disassemble(&buf); err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(string(contents["want.txt"]), buf.String()); diff != "" {
				t.Errorf("listing (-want +got):\n%s", diff)
			}
		})
	}
}

func TestComputeStats(t *testing.T) {
	results := []TestResult{
		{Passed: true},
		{Passed: true},
		{Skipped: true},
		{Error: errors.New("boom")},
	}
	want := SummaryStats{Total: 4, Passed: 2, Failed: 1, Skipped: 1}
	if diff := cmp.Diff(want, ComputeStats(results)); diff != "" {
		t.Errorf("stats (-want +got):\n%s", diff)
	}
}

func TestExpectErrorMismatch(t *testing.T) {
	loaded, err := Parse([]byte(`
name: kinds
tests:
  - name: wrong kind
    method: {desc: "()I"}
    expect_error: unsupported
    body:
      - return: x
  - name: no error
    method: {desc: "()I"}
    expect_error: type mismatch
    body:
      - return: 1
`))
	if err != nil {
		t.Fatal(err)
	}
	for _, result := range NewRunner().RunAll(loaded) {
		if result.Passed {
			t.Errorf("%s passed", result.Test.Test.Name)
		}
	}
}

func TestRunnerTickLimit(t *testing.T) {
	loaded, err := Parse([]byte(`
name: spin
tests:
  - name: endless loop
    method: {desc: "()V"}
    body:
      - local: {name: i, value: 0}
      - loop:
          body:
            - inc: {name: i}
    runs:
      - {expect: {}}
`))
	if err != nil {
		t.Fatal(err)
	}
	runner := NewRunner()
	runner.TickLimit = 500
	result := runner.Run(loaded[0])
	if result.Passed {
		t.Fatal("endless loop passed")
	}
	if result.Error == nil || !strings.Contains(result.Error.Error(), "tick limit 500 exceeded") {
		t.Errorf("error %v, want the tick limit", result.Error)
	}
}

// BenchmarkConformance measures generation, verification and execution of
// the bundled suites
func BenchmarkConformance(b *testing.B) {
	tests, err := LoadAllTests(TestPath)
	if err != nil {
		b.Fatal(err)
	}
	runner := NewRunner()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		runner.RunAll(tests)
	}
}

func ExampleFormatStats() {
	fmt.Println(FormatStats(SummaryStats{Total: 3, Passed: 1, Failed: 1, Skipped: 1}))
	// Output: 1 passed, 1 failed, 1 skipped (3 total)
}
