package engine

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/dqfoundry/dqengine/checks"
)

// ValidateChecks validates a batch of check specs against the function
// catalog. Every violation across every spec is accumulated; validation
// never fails hard, so the caller sees all problems at once. Overrides, when
// non-empty, replace the built-in catalog for function resolution.
func ValidateChecks(specs []CheckSpec, overrides map[string]*checks.FuncSpec) *ValidationStatus {
	status := &ValidationStatus{}
	for _, spec := range specs {
		slog.Debug("validating check spec", "spec", describeSpec(spec))
		status.AddErrors(validateCheckSpec(spec, overrides))
	}
	return status
}

// validateCheckSpec checks one spec. A missing check block is fatal for the
// remaining checks on that spec, since nothing can be resolved without it.
func validateCheckSpec(spec CheckSpec, overrides map[string]*checks.FuncSpec) []string {
	var errs []string

	if spec.Criticality != "" && !Severity(spec.Criticality).valid() {
		errs = append(errs, fmt.Sprintf("invalid value for 'criticality' field: %s", describeSpec(spec)))
	}

	if spec.Check == nil {
		errs = append(errs, fmt.Sprintf("'check' field is missing: %s", describeSpec(spec)))
		return errs
	}

	return append(errs, validateCheckBlock(spec, overrides)...)
}

func validateCheckBlock(spec CheckSpec, overrides map[string]*checks.FuncSpec) []string {
	block := spec.Check

	if block.Function == "" {
		return []string{fmt.Sprintf("'function' field is missing in the 'check' block: %s", describeSpec(spec))}
	}

	fn, _ := checks.Resolve(block.Function, overrides, false)
	if fn == nil {
		return []string{fmt.Sprintf("function '%s' is not defined: %s", block.Function, describeSpec(spec))}
	}

	return validateArguments(block.Arguments, fn, spec)
}

// validateArguments handles the col_names expansion shorthand: the list must
// be a non-empty list of strings, and argument validation proceeds with the
// first column aliased under col_name, mirroring how the rule set expander
// will call the function per column.
func validateArguments(args map[string]any, fn *checks.FuncSpec, spec CheckSpec) []string {
	if colNames, ok := args["col_names"]; ok {
		columns, err := checks.StringList(colNames)
		if err != nil {
			return []string{fmt.Sprintf("'col_names' should be a list of strings in the 'arguments' block: %s", describeSpec(spec))}
		}
		if len(columns) == 0 {
			return []string{fmt.Sprintf("'col_names' should not be empty in the 'arguments' block: %s", describeSpec(spec))}
		}

		substituted := make(map[string]any, len(args))
		maps.Copy(substituted, args)
		delete(substituted, "col_names")
		substituted["col_name"] = columns[0]
		return validateFuncArgs(substituted, fn, spec)
	}

	return validateFuncArgs(args, fn, spec)
}

// validateFuncArgs checks supplied argument names and runtime types against
// the function's parameter table.
func validateFuncArgs(args map[string]any, fn *checks.FuncSpec, spec CheckSpec) []string {
	var errs []string

	if len(args) == 0 && len(fn.Params) > 0 {
		errs = append(errs, fmt.Sprintf(
			"no arguments provided for function '%s' in the 'arguments' block: %s. Expected arguments are: %v",
			fn.Name, describeSpec(spec), fn.ParamNames()))
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		value := args[name]
		param, ok := fn.Param(name)
		if !ok {
			errs = append(errs, fmt.Sprintf(
				"unexpected argument '%s' for function '%s' in the 'arguments' block: %s. Expected arguments are: %v",
				name, fn.Name, describeSpec(spec), fn.ParamNames()))
			continue
		}
		if !param.Type.Matches(value) {
			errs = append(errs, fmt.Sprintf(
				"argument '%s' should be of type '%s' for function '%s' in the 'arguments' block: %s",
				name, param.Type, fn.Name, describeSpec(spec)))
		}
	}

	return errs
}
