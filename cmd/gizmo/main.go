package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarkusio/gizmo-sub001/conformance"
	"github.com/quarkusio/gizmo-sub001/trace"
	"github.com/quarkusio/gizmo-sub001/verify"
)

const usage = `usage: gizmo [flags] <command> <suite.yaml | dir>...

Commands:
  run     generate, verify and execute every test, then print a summary
  disasm  print the listing of every generated method
  build   write one .class file per test under -o

Flags:
`

func main() {
	configPath := flag.String("config", "", "YAML config file (target, trace, trace_filter, debug_nops, verify, output)")
	target := flag.String("target", "", "Java release to generate for (e.g. v1.8, v11, v17)")
	output := flag.String("o", "", "Output directory for build")
	doVerify := flag.Bool("verify", true, "Verify generated classes before writing them")
	debugNops := flag.Bool("debug-nops", false, "Emit a nop at the start of every block")
	tickLimit := flag.Int64("ticks", 0, "Instruction limit per run (0 for the VM default)")
	htmlPath := flag.String("html", "", "Write an HTML report of the run command")
	watchMode := flag.Bool("watch", false, "Rerun the command whenever a suite changes")

	// Trace flags
	traceEnabled := flag.Bool("trace", false, "Enable generation tracing")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob on owner.method, e.g. 'test/*.test')")

	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		os.Exit(2)
	}
	command, paths := flag.Arg(0), flag.Args()[1:]

	cfg := &Config{}
	if *configPath != "" {
		var err error
		if cfg, err = loadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Flags given on the command line win over the config file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "target":
			cfg.Target = *target
		case "o":
			cfg.Output = *output
		case "verify":
			cfg.Verify = doVerify
		case "debug-nops":
			cfg.DebugNops = *debugNops
		case "ticks":
			cfg.TickLimit = *tickLimit
		case "trace":
			cfg.Trace = *traceEnabled
		case "trace-filter":
			cfg.TraceFilter = splitFilters(*traceFilter)
		}
	})
	if cfg.Target == "" {
		cfg.Target = DefaultTarget
	}

	runner, err := newRunner(cfg)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	run := func() {
		if err := runCommand(command, paths, runner, cfg, *htmlPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if !*watchMode {
				os.Exit(1)
			}
		}
	}
	run()
	if *watchMode {
		if err := watch(paths, run); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	}
}

func splitFilters(s string) []string {
	if s == "" {
		return nil
	}
	filters := strings.Split(s, ",")
	for i := range filters {
		filters[i] = strings.TrimSpace(filters[i])
	}
	return filters
}

func newRunner(cfg *Config) (*conformance.Runner, error) {
	major, err := majorFor(cfg.Target)
	if err != nil {
		return nil, err
	}
	runner := conformance.NewRunner()
	runner.Major = major
	runner.DebugNops = cfg.DebugNops
	runner.TickLimit = cfg.TickLimit
	if cfg.Trace {
		runner.Tracer = trace.New(true, cfg.TraceFilter, os.Stderr)
		log.Printf("Tracing enabled (filters: %v)", cfg.TraceFilter)
	}
	return runner, nil
}

// loadSuites loads every test of every path, files and directories alike
func loadSuites(paths []string) ([]conformance.LoadedTest, error) {
	var tests []conformance.LoadedTest
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		var loaded []conformance.LoadedTest
		if info.IsDir() {
			loaded, err = conformance.LoadAllTests(p)
		} else {
			loaded, err = conformance.LoadFile(p)
		}
		if err != nil {
			return nil, err
		}
		tests = append(tests, loaded...)
	}
	return tests, nil
}

func runCommand(command string, paths []string, runner *conformance.Runner, cfg *Config, htmlPath string) error {
	tests, err := loadSuites(paths)
	if err != nil {
		return err
	}
	switch command {
	case "run":
		return runTests(runner, tests, htmlPath)
	case "disasm":
		return disasmTests(runner, tests)
	case "build":
		return buildTests(runner, tests, cfg)
	}
	return fmt.Errorf("unknown command %q", command)
}

func runTests(runner *conformance.Runner, tests []conformance.LoadedTest, htmlPath string) error {
	results := runner.RunAll(tests)
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Printf("SKIP %s: %s (%s)\n", r.Test.File, r.Test.Test.Name, r.SkipReason)
		case r.Passed:
			fmt.Printf("PASS %s: %s\n", r.Test.File, r.Test.Test.Name)
		default:
			fmt.Printf("FAIL %s: %s\n     %v\n", r.Test.File, r.Test.Test.Name, r.Error)
		}
	}
	stats := conformance.ComputeStats(results)
	fmt.Println(conformance.FormatStats(stats))

	if htmlPath != "" {
		if err := writeHTMLReport(htmlPath, results); err != nil {
			return err
		}
		log.Printf("Report written to %s", htmlPath)
	}
	if stats.Failed > 0 {
		return fmt.Errorf("%d test(s) failed", stats.Failed)
	}
	return nil
}

func disasmTests(runner *conformance.Runner, tests []conformance.LoadedTest) error {
	failed := 0
	for _, test := range tests {
		if skipped, _ := test.Test.IsSkipped(); skipped || test.Test.ExpectError != "" {
			continue
		}
		fmt.Printf("=== %s: %s ===\n", test.File, test.Test.Name)
		c, body, err := conformance.Generate(test, runner.Config())
		if err != nil {
			fmt.Printf("  %v\n", err)
			failed++
			continue
		}
		result := conformance.TestResult{Test: test, Class: c, Body: body}
		if err := result.Disassemble(os.Stdout); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d method(s) failed to generate", failed)
	}
	return nil
}

func buildTests(runner *conformance.Runner, tests []conformance.LoadedTest, cfg *Config) error {
	if cfg.Output == "" {
		return errors.New("build needs an output directory (-o or output in the config)")
	}
	for _, test := range tests {
		if skipped, _ := test.Test.IsSkipped(); skipped || test.Test.ExpectError != "" {
			continue
		}
		c, _, err := conformance.Generate(test, runner.Config())
		if err != nil {
			return fmt.Errorf("%s: %s: %w", test.File, test.Test.Name, err)
		}
		if cfg.verifyEnabled() {
			if err := verify.Class(c.File(), test.Suite.TypeHierarchy()); err != nil {
				return fmt.Errorf("%s: %s: %w", test.File, test.Test.Name, err)
			}
		}
		data, err := c.Bytes()
		if err != nil {
			return err
		}
		dir := filepath.Join(cfg.Output, slug(test.Suite.Name))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		path := filepath.Join(dir, slug(test.Test.Name)+".class")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		log.Printf("Wrote %s (%d bytes)", path, len(data))
	}
	return nil
}

// slug turns a test name into a file name
func slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case b.Len() > 0 && !strings.HasSuffix(b.String(), "_"):
			b.WriteByte('_')
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
