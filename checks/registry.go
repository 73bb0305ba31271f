package checks

import (
	"fmt"
)

// ParamType classifies the runtime type a check-function argument must have.
// Metadata arrives decoded from YAML or JSON, so the numeric kinds accept
// every width the decoders produce.
type ParamType string

const (
	ParamString     ParamType = "string"
	ParamBool       ParamType = "bool"
	ParamNumber     ParamType = "number"
	ParamList       ParamType = "list"
	ParamStringList ParamType = "list of strings"
)

// Matches reports whether a runtime value satisfies the parameter type.
func (t ParamType) Matches(value any) bool {
	switch t {
	case ParamString:
		_, ok := value.(string)
		return ok
	case ParamBool:
		_, ok := value.(bool)
		return ok
	case ParamNumber:
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
			return true
		}
		return false
	case ParamList:
		switch value.(type) {
		case []any, []string:
			return true
		}
		return false
	case ParamStringList:
		_, err := StringList(value)
		return err == nil
	}
	return false
}

// Param describes one named parameter of a check function.
type Param struct {
	Name string
	Type ParamType
}

// FuncSpec describes a resolvable check function: its parameter table, used
// by metadata validation, and a Build constructor turning validated named
// arguments into a Check. The explicit table replaces signature reflection;
// validating a spec is a map lookup.
type FuncSpec struct {
	Name   string
	Params []Param
	Build  func(args map[string]any) (*Check, error)
}

// Param looks up a parameter by name.
func (f *FuncSpec) Param(name string) (Param, bool) {
	for _, p := range f.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Param{}, false
}

// ParamNames returns the parameter names in declaration order.
func (f *FuncSpec) ParamNames() []string {
	names := make([]string, len(f.Params))
	for i, p := range f.Params {
		names[i] = p.Name
	}
	return names
}

// StringList coerces a decoded metadata value into a list of strings.
// YAML and JSON decoders produce []any; typed []string is accepted too.
func StringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T, want string", i, item)
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value is %T, want a list of strings", value)
	}
}

func argString(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("missing argument '%s'", name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument '%s' is %T, want string", name, v)
	}
	return s, nil
}

func argBool(args map[string]any, name string, def bool) (bool, error) {
	v, ok := args[name]
	if !ok {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("argument '%s' is %T, want bool", name, v)
	}
	return b, nil
}

func argNumber(args map[string]any, name string) (any, error) {
	v, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing argument '%s'", name)
	}
	if !ParamNumber.Matches(v) {
		return nil, fmt.Errorf("argument '%s' is %T, want a number", name, v)
	}
	return v, nil
}

func argInt(args map[string]any, name string, def int64) (int64, error) {
	v, ok := args[name]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("argument '%s' is %T, want an integer", name, v)
	}
}

func argList(args map[string]any, name string) ([]any, error) {
	v, ok := args[name]
	if !ok {
		return nil, fmt.Errorf("missing argument '%s'", name)
	}
	switch list := v.(type) {
	case []any:
		return list, nil
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	default:
		return nil, fmt.Errorf("argument '%s' is %T, want a list", name, v)
	}
}

// builtins is the built-in catalog of check-function constructors, keyed by
// the function name used in rule metadata.
var builtins = map[string]*FuncSpec{
	"is_not_null": {
		Name:   "is_not_null",
		Params: []Param{{"col_name", ParamString}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			return IsNotNull(col), nil
		},
	},
	"is_not_empty": {
		Name:   "is_not_empty",
		Params: []Param{{"col_name", ParamString}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			return IsNotEmpty(col), nil
		},
	},
	"is_not_null_and_not_empty": {
		Name:   "is_not_null_and_not_empty",
		Params: []Param{{"col_name", ParamString}, {"trim_strings", ParamBool}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			trim, err := argBool(args, "trim_strings", false)
			if err != nil {
				return nil, err
			}
			return IsNotNullAndNotEmpty(col, trim), nil
		},
	},
	"value_is_in_list": {
		Name:   "value_is_in_list",
		Params: []Param{{"col_name", ParamString}, {"allowed", ParamList}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			allowed, err := argList(args, "allowed")
			if err != nil {
				return nil, err
			}
			return ValueIsInList(col, allowed)
		},
	},
	"value_is_not_null_and_is_in_list": {
		Name:   "value_is_not_null_and_is_in_list",
		Params: []Param{{"col_name", ParamString}, {"allowed", ParamList}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			allowed, err := argList(args, "allowed")
			if err != nil {
				return nil, err
			}
			return ValueIsNotNullAndIsInList(col, allowed)
		},
	},
	"not_less_than": {
		Name:   "not_less_than",
		Params: []Param{{"col_name", ParamString}, {"limit", ParamNumber}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			limit, err := argNumber(args, "limit")
			if err != nil {
				return nil, err
			}
			return NotLessThan(col, limit)
		},
	},
	"not_greater_than": {
		Name:   "not_greater_than",
		Params: []Param{{"col_name", ParamString}, {"limit", ParamNumber}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			limit, err := argNumber(args, "limit")
			if err != nil {
				return nil, err
			}
			return NotGreaterThan(col, limit)
		},
	},
	"is_in_range": {
		Name:   "is_in_range",
		Params: []Param{{"col_name", ParamString}, {"min_limit", ParamNumber}, {"max_limit", ParamNumber}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			minLimit, err := argNumber(args, "min_limit")
			if err != nil {
				return nil, err
			}
			maxLimit, err := argNumber(args, "max_limit")
			if err != nil {
				return nil, err
			}
			return IsInRange(col, minLimit, maxLimit)
		},
	},
	"is_not_in_range": {
		Name:   "is_not_in_range",
		Params: []Param{{"col_name", ParamString}, {"min_limit", ParamNumber}, {"max_limit", ParamNumber}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			minLimit, err := argNumber(args, "min_limit")
			if err != nil {
				return nil, err
			}
			maxLimit, err := argNumber(args, "max_limit")
			if err != nil {
				return nil, err
			}
			return IsNotInRange(col, minLimit, maxLimit)
		},
	},
	"regex_match": {
		Name:   "regex_match",
		Params: []Param{{"col_name", ParamString}, {"regex", ParamString}, {"negate", ParamBool}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			pattern, err := argString(args, "regex")
			if err != nil {
				return nil, err
			}
			negate, err := argBool(args, "negate", false)
			if err != nil {
				return nil, err
			}
			return RegexMatch(col, pattern, negate), nil
		},
	},
	"not_in_future": {
		Name:   "not_in_future",
		Params: []Param{{"col_name", ParamString}, {"offset", ParamNumber}},
		Build: func(args map[string]any) (*Check, error) {
			col, err := argString(args, "col_name")
			if err != nil {
				return nil, err
			}
			offset, err := argInt(args, "offset", 0)
			if err != nil {
				return nil, err
			}
			return NotInFuture(col, offset), nil
		},
	},
	"expression": {
		Name:   "expression",
		Params: []Param{{"expression", ParamString}, {"msg", ParamString}, {"name", ParamString}},
		Build: func(args map[string]any) (*Check, error) {
			condition, err := argString(args, "expression")
			if err != nil {
				return nil, err
			}
			msg, _ := args["msg"].(string)
			name, _ := args["name"].(string)
			return Expression(condition, msg, name), nil
		},
	},
}

// ErrUnresolvedFunction reports a check-function name with no catalog entry.
type ErrUnresolvedFunction struct {
	Name string
}

func (e *ErrUnresolvedFunction) Error() string {
	return fmt.Sprintf("check function '%s' is not defined", e.Name)
}

// Resolve looks up a check function by name. When overrides is non-empty the
// lookup happens there only; otherwise the built-in catalog is consulted.
// With failOnMissing a miss returns *ErrUnresolvedFunction; without it a miss
// returns (nil, nil) so callers can record a validation message instead.
func Resolve(name string, overrides map[string]*FuncSpec, failOnMissing bool) (*FuncSpec, error) {
	var fn *FuncSpec
	if len(overrides) > 0 {
		fn = overrides[name]
	} else {
		fn = builtins[name]
	}
	if fn == nil && failOnMissing {
		return nil, &ErrUnresolvedFunction{Name: name}
	}
	return fn, nil
}

// MustResolve resolves a built-in function and panics on a miss. Intended for
// building rule sets programmatically over the built-in catalog.
func MustResolve(name string) *FuncSpec {
	fn, err := Resolve(name, nil, true)
	if err != nil {
		panic(err)
	}
	return fn
}
