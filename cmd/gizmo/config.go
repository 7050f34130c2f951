package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/quarkusio/gizmo-sub001/classfile"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Config is the optional gizmo.yaml file. Command-line flags override it.
type Config struct {
	Target      string   `yaml:"target,omitempty"` // Java release, e.g. v1.8, v17
	Trace       bool     `yaml:"trace,omitempty"`
	TraceFilter []string `yaml:"trace_filter,omitempty"`
	DebugNops   bool     `yaml:"debug_nops,omitempty"`
	Verify      *bool    `yaml:"verify,omitempty"` // defaults to true
	Output      string   `yaml:"output,omitempty"`
	TickLimit   int64    `yaml:"tick_limit,omitempty"`
}

// DefaultTarget is used when neither the config nor -target names one
const DefaultTarget = "v17"

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// verifyEnabled reports whether generated classes are verified
func (c *Config) verifyEnabled() bool {
	return c.Verify == nil || *c.Verify
}

// releaseOf parses a Java release written as a version: "v1.8" and "8"
// are release 8, "v17" and "17.0.2" release 17
func releaseOf(target string) (int, error) {
	v := target
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return 0, fmt.Errorf("invalid target %q", target)
	}
	mm := strings.TrimPrefix(semver.MajorMinor(v), "v")
	major, minor, _ := strings.Cut(mm, ".")
	n, err := strconv.Atoi(major)
	if err != nil {
		return 0, fmt.Errorf("invalid target %q", target)
	}
	// the old 1.x scheme names the release in the minor number
	if n == 1 {
		if n, err = strconv.Atoi(minor); err != nil {
			return 0, fmt.Errorf("invalid target %q", target)
		}
	}
	return n, nil
}

// majorFor returns the class-file major version for target
func majorFor(target string) (uint16, error) {
	release, err := releaseOf(target)
	if err != nil {
		return 0, err
	}
	return classfile.MajorFor(release)
}
