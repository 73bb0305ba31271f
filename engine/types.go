// Package engine implements the data-quality rule engine: validating
// declarative check metadata, building executable rules from it, applying
// rules to a dataset and splitting the result into valid and invalid rows.
package engine

import (
	"fmt"
	"maps"
	"strings"

	"github.com/dqfoundry/dqengine/checks"
)

// Severity determines which diagnostic column a failing rule writes to and
// whether failing rows are excluded from the valid partition.
type Severity string

const (
	// Warn marks potential problems; warned rows stay in the valid partition.
	Warn Severity = "warn"
	// Error marks critical problems; failing rows are excluded from the
	// valid partition.
	Error Severity = "error"
)

func (s Severity) valid() bool {
	return s == Warn || s == Error
}

// Default names of the diagnostic columns attached by Apply. Both are
// configurable through engine options.
const (
	DefaultErrorsColumn   = "_errors"
	DefaultWarningsColumn = "_warnings"
)

// Rule pairs a check expression with a name and a severity. Rules are
// immutable; the derived name and the validated severity are computed at
// construction.
type Rule struct {
	check       *checks.Check
	name        string
	criticality Severity
}

// NewRule creates a rule. An empty name derives from the check's alias,
// prefixed "col_". A severity outside {warn, error} coerces to error.
func NewRule(check *checks.Check, name string, criticality Severity) Rule {
	if name == "" && check != nil {
		name = "col_" + check.Alias()
	}
	if !criticality.valid() {
		criticality = Error
	}
	return Rule{check: check, name: name, criticality: criticality}
}

// Check returns the rule's check expression.
func (r Rule) Check() *checks.Check { return r.check }

// Name returns the rule's name, used as the key in diagnostic maps.
func (r Rule) Name() string { return r.name }

// Criticality returns the validated severity.
func (r Rule) Criticality() Severity { return r.criticality }

// RuleColSet defines one check function applied uniformly to a set of
// columns. Args are shared named arguments passed to every expansion;
// col_name is filled in per column.
type RuleColSet struct {
	Columns     []string
	Func        *checks.FuncSpec
	Criticality Severity
	Args        map[string]any
}

// GetRules expands the set into one rule per column, preserving column
// order. Expansions yielding a nil check are dropped.
func (s RuleColSet) GetRules() ([]Rule, error) {
	rules := make([]Rule, 0, len(s.Columns))
	for _, column := range s.Columns {
		args := make(map[string]any, len(s.Args)+1)
		maps.Copy(args, s.Args)
		args["col_name"] = column
		check, err := s.Func.Build(args)
		if err != nil {
			return nil, fmt.Errorf("building check %s for column %s: %w", s.Func.Name, column, err)
		}
		if check == nil {
			continue
		}
		rules = append(rules, NewRule(check, "", s.Criticality))
	}
	return rules, nil
}

// ValidationStatus accumulates validation error messages for a batch of
// check specs. It is a transient return value; a fresh one is created per
// validation call.
type ValidationStatus struct {
	errors []string
}

// AddError records one validation error.
func (s *ValidationStatus) AddError(err string) {
	s.errors = append(s.errors, err)
}

// AddErrors records a batch of validation errors.
func (s *ValidationStatus) AddErrors(errs []string) {
	s.errors = append(s.errors, errs...)
}

// HasErrors reports whether any error was recorded.
func (s *ValidationStatus) HasErrors() bool {
	return len(s.errors) > 0
}

// Errors returns the recorded messages in order.
func (s *ValidationStatus) Errors() []string {
	return s.errors
}

// String joins all messages, or reports that none were found.
func (s *ValidationStatus) String() string {
	if s.HasErrors() {
		return strings.Join(s.errors, "\n")
	}
	return "No errors found"
}

// CheckSpec is the declarative form of one rule: a check block naming a
// catalog function with its arguments, an optional rule name, and an
// optional criticality (defaults to error).
type CheckSpec struct {
	Check       *CheckBlock `json:"check" yaml:"check"`
	Name        string      `json:"name,omitempty" yaml:"name,omitempty"`
	Criticality string      `json:"criticality,omitempty" yaml:"criticality,omitempty"`
}

// CheckBlock names the check function and its named arguments. An
// "arguments.col_names" entry (non-empty list of column names) expands the
// spec into one rule per column.
type CheckBlock struct {
	Function  string         `json:"function" yaml:"function"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// describeSpec renders a spec for inclusion in validation messages.
func describeSpec(spec CheckSpec) string {
	var b strings.Builder
	b.WriteByte('{')
	if spec.Check != nil {
		fmt.Fprintf(&b, "check: {function: %s, arguments: %v}", spec.Check.Function, spec.Check.Arguments)
	}
	if spec.Name != "" {
		fmt.Fprintf(&b, ", name: %s", spec.Name)
	}
	if spec.Criticality != "" {
		fmt.Fprintf(&b, ", criticality: %s", spec.Criticality)
	}
	b.WriteByte('}')
	return b.String()
}
