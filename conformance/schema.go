package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Class       string               `yaml:"class,omitempty"` // defaults to test/Suite
	Hierarchy   map[string]ClassDecl `yaml:"hierarchy,omitempty"`
	Tests       []TestCase           `yaml:"tests"`
}

// ClassDecl adds a class to the hierarchy the suite generates against
type ClassDecl struct {
	Super      string   `yaml:"super,omitempty"`
	Interfaces []string `yaml:"interfaces,omitempty"`
	Interface  bool     `yaml:"interface,omitempty"`
}

// TestCase represents a single generated method and its runs
type TestCase struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Skip        interface{}   `yaml:"skip,omitempty"` // bool or string
	Method      MethodShape   `yaml:"method"`
	Body        []interface{} `yaml:"body"`
	Runs        []Run         `yaml:"runs,omitempty"`
	ExpectError string        `yaml:"expect_error,omitempty"` // codegen error kind
	Emits       []string      `yaml:"emits,omitempty"`        // opcodes that must appear
	NotEmits    []string      `yaml:"not_emits,omitempty"`    // opcodes that must not appear
}

// MethodShape describes the generated method. Methods are static unless
// Instance is set.
type MethodShape struct {
	Desc     string   `yaml:"desc"`
	Instance bool     `yaml:"instance,omitempty"`
	Params   []string `yaml:"params,omitempty"`
}

// Run is one invocation of the generated method
type Run struct {
	Args   []interface{} `yaml:"args,omitempty"`
	Expect Expectation   `yaml:"expect"`
}

// Expectation defines what result is expected from a run
type Expectation struct {
	Value   interface{}    `yaml:"value,omitempty"`   // exact match, converted to the return type
	Null    bool           `yaml:"null,omitempty"`    // the method returns null
	Thrown  string         `yaml:"thrown,omitempty"`  // internal name of the uncaught exception
	Message string         `yaml:"message,omitempty"` // its message, when set
	Probes  map[string]int `yaml:"probes,omitempty"`  // exact probe counts
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	if tc.Skip == nil {
		return false, ""
	}

	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
		return false, ""
	case string:
		return true, v
	default:
		return false, ""
	}
}
