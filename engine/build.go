package engine

import (
	"fmt"
	"log/slog"
	"maps"

	"github.com/dqfoundry/dqengine/checks"
)

// BuildRules turns validated check metadata into executable rules.
// Validation always runs first; any accumulated error aborts the build with
// an InvalidSpecificationError carrying the full status. A col_names
// argument expands the spec into one rule per column via RuleColSet,
// preserving column order; otherwise the function builds a single check
// wrapped in one rule named by the spec (or the derived default).
//
// Duplicate rule names within one severity would silently collide in the
// diagnostic map, so they are rejected here as well.
func BuildRules(specs []CheckSpec, overrides map[string]*checks.FuncSpec) ([]Rule, error) {
	status := ValidateChecks(specs, overrides)
	if status.HasErrors() {
		return nil, &InvalidSpecificationError{Status: status}
	}

	var rules []Rule
	for _, spec := range specs {
		slog.Debug("building rule from spec", "spec", describeSpec(spec))

		fn, err := checks.Resolve(spec.Check.Function, overrides, true)
		if err != nil {
			// Validation already guaranteed resolution.
			return nil, err
		}

		criticality := Severity(spec.Criticality)
		if criticality == "" {
			criticality = Error
		}

		args := spec.Check.Arguments
		if colNames, ok := args["col_names"]; ok {
			columns, err := checks.StringList(colNames)
			if err != nil {
				return nil, fmt.Errorf("reading col_names for function %s: %w", fn.Name, err)
			}
			shared := make(map[string]any, len(args))
			maps.Copy(shared, args)
			delete(shared, "col_names")

			expanded, err := RuleColSet{
				Columns:     columns,
				Func:        fn,
				Criticality: criticality,
				Args:        shared,
			}.GetRules()
			if err != nil {
				return nil, err
			}
			rules = append(rules, expanded...)
			continue
		}

		check, err := fn.Build(args)
		if err != nil {
			return nil, fmt.Errorf("building check %s: %w", fn.Name, err)
		}
		if check == nil {
			continue
		}
		rules = append(rules, NewRule(check, spec.Name, criticality))
	}

	if status := checkNameCollisions(rules); status.HasErrors() {
		return nil, &InvalidSpecificationError{Status: status}
	}

	return rules, nil
}

// BuildRulesFromColSets expands rule set templates into a flat rule list.
func BuildRulesFromColSets(sets ...RuleColSet) ([]Rule, error) {
	var rules []Rule
	for _, set := range sets {
		expanded, err := set.GetRules()
		if err != nil {
			return nil, err
		}
		rules = append(rules, expanded...)
	}
	return rules, nil
}

// checkNameCollisions rejects duplicate rule names within one severity
// group; within a diagnostic map the name is the key, so a duplicate would
// be last-writer-wins.
func checkNameCollisions(rules []Rule) *ValidationStatus {
	status := &ValidationStatus{}
	seen := make(map[Severity]map[string]bool)
	for _, rule := range rules {
		group := seen[rule.Criticality()]
		if group == nil {
			group = make(map[string]bool)
			seen[rule.Criticality()] = group
		}
		if group[rule.Name()] {
			status.AddError(fmt.Sprintf("duplicate rule name '%s' within criticality '%s'", rule.Name(), rule.Criticality()))
		}
		group[rule.Name()] = true
	}
	return status
}
