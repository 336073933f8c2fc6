package runner

import (
	"time"

	"github.com/google/uuid"
)

// PlayerPlaceholder is replaced by the suite's player ID in paths and bodies
const PlayerPlaceholder = "{player}"

// TestSuite defines a complete integration test scenario
// Can either be a regular test with Steps, or a suite that references other Cases
type TestSuite struct {
	Name  string     `yaml:"name"`
	Steps []TestStep `yaml:"steps,omitempty"` // Used for regular tests
	Cases []string   `yaml:"cases,omitempty"` // Used for suite tests (list of case files)
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep is one HTTP call and its expected outcome
type TestStep struct {
	Name         string       `yaml:"name,omitempty"`
	Method       string       `yaml:"method"`
	Path         string       `yaml:"path"`
	Body         any          `yaml:"body,omitempty"`
	Expectations Expectations `yaml:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Status int    `yaml:"status,omitempty"`
	Code   string `yaml:"code,omitempty"` // error code in the JSON error body

	// Fields maps a dotted path into the JSON response ("quote.total",
	// "commands.0") to its expected value rendered as a string.
	Fields map[string]string `yaml:"fields,omitempty"`

	ResponseContains    []string `yaml:"response_contains,omitempty"`
	ResponseNotContains []string `yaml:"response_not_contains,omitempty"`
	ResponseRegex       string   `yaml:"response_regex,omitempty"`
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	Status       int
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	Player   uuid.UUID // player used for this run
}
