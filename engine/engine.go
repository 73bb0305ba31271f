package engine

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/ext"
	"golang.org/x/sync/errgroup"

	"github.com/dqfoundry/dqengine/checks"
	"github.com/dqfoundry/dqengine/dataset"
)

// costLimit caps per-expression evaluation cost to stop runaway expressions.
const costLimit = 1_000_000

// Option configures an Engine.
type Option func(*Engine)

// WithErrorsColumn overrides the name of the errors diagnostic column.
func WithErrorsColumn(name string) Option {
	return func(e *Engine) { e.errorsColumn = name }
}

// WithWarningsColumn overrides the name of the warnings diagnostic column.
func WithWarningsColumn(name string) Option {
	return func(e *Engine) { e.warningsColumn = name }
}

// Engine applies quality rules to datasets. It owns the CEL environment the
// check expressions compile against and caches compiled programs by
// expression source, so re-applying the same rules pays no compilation cost.
// Safe for concurrent use.
type Engine struct {
	env            *cel.Env
	errorsColumn   string
	warningsColumn string

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// New creates an engine. Check expressions see two variables: `row`, the
// record as a string-keyed map, and `now`, the evaluation timestamp.
func New(opts ...Option) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("row", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("now", cel.TimestampType),
		cel.CrossTypeNumericComparisons(true),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &Engine{
		env:            env,
		errorsColumn:   DefaultErrorsColumn,
		warningsColumn: DefaultWarningsColumn,
		programs:       make(map[string]cel.Program),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ErrorsColumn returns the name of the errors diagnostic column.
func (e *Engine) ErrorsColumn() string { return e.errorsColumn }

// WarningsColumn returns the name of the warnings diagnostic column.
func (e *Engine) WarningsColumn() string { return e.warningsColumn }

// program compiles a check expression, serving repeats from the cache.
func (e *Engine) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prog, ok := e.programs[expr]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := e.env.Program(ast, cel.CostLimit(costLimit))
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}

	e.mu.Lock()
	e.programs[expr] = prog
	e.mu.Unlock()

	return prog, nil
}

// Apply evaluates the rules against every row and returns the dataset with
// the two diagnostic columns attached. Each diagnostic cell is either nil or
// a map from rule name to violation message, holding only rules of the
// column's severity that fired on that row. With no rules, both columns are
// attached all-null and nothing is evaluated.
func (e *Engine) Apply(ds *dataset.Dataset, rules []Rule) (*dataset.Dataset, error) {
	if len(rules) == 0 {
		return e.appendEmptyDiagnostics(ds)
	}

	errorRules := rulesBySeverity(rules, Error)
	warnRules := rulesBySeverity(rules, Warn)

	out, err := e.attachDiagnostics(ds, errorRules, e.errorsColumn)
	if err != nil {
		return nil, err
	}
	return e.attachDiagnostics(out, warnRules, e.warningsColumn)
}

// ApplyAndSplit applies the rules and partitions the result. Valid rows have
// a null errors diagnostic and come back without the diagnostic columns;
// invalid rows have any error or warning diagnostic and keep them. With no
// rules the input comes back untouched alongside an empty annotated dataset.
func (e *Engine) ApplyAndSplit(ds *dataset.Dataset, rules []Rule) (valid, invalid *dataset.Dataset, err error) {
	if len(rules) == 0 {
		annotated, err := e.appendEmptyDiagnostics(ds)
		if err != nil {
			return nil, nil, err
		}
		return ds, annotated.Limit(0), nil
	}

	checked, err := e.Apply(ds, rules)
	if err != nil {
		return nil, nil, err
	}
	return e.GetValid(checked), e.GetInvalid(checked), nil
}

// ApplyByMetadata builds rules from check metadata and applies them.
func (e *Engine) ApplyByMetadata(ds *dataset.Dataset, specs []CheckSpec, overrides map[string]*checks.FuncSpec) (*dataset.Dataset, error) {
	rules, err := BuildRules(specs, overrides)
	if err != nil {
		return nil, err
	}
	return e.Apply(ds, rules)
}

// ApplyByMetadataAndSplit builds rules from check metadata, applies them and
// splits the result.
func (e *Engine) ApplyByMetadataAndSplit(ds *dataset.Dataset, specs []CheckSpec, overrides map[string]*checks.FuncSpec) (valid, invalid *dataset.Dataset, err error) {
	rules, err := BuildRules(specs, overrides)
	if err != nil {
		return nil, nil, err
	}
	return e.ApplyAndSplit(ds, rules)
}

// GetInvalid returns the rows carrying any error or warning diagnostic,
// diagnostic columns retained.
func (e *Engine) GetInvalid(ds *dataset.Dataset) *dataset.Dataset {
	return ds.Where(func(row dataset.Row) bool {
		return row[e.errorsColumn] != nil || row[e.warningsColumn] != nil
	})
}

// GetValid returns the rows with a null errors diagnostic, diagnostic
// columns stripped. Rows with only warnings are valid.
func (e *Engine) GetValid(ds *dataset.Dataset) *dataset.Dataset {
	return ds.Where(func(row dataset.Row) bool {
		return row[e.errorsColumn] == nil
	}).Drop(e.errorsColumn, e.warningsColumn)
}

// appendEmptyDiagnostics attaches both diagnostic columns as all-null.
func (e *Engine) appendEmptyDiagnostics(ds *dataset.Dataset) (*dataset.Dataset, error) {
	out, err := ds.WithColumn(e.errorsColumn, make([]any, ds.Len()))
	if err != nil {
		return nil, err
	}
	return out.WithColumn(e.warningsColumn, make([]any, ds.Len()))
}

func rulesBySeverity(rules []Rule, severity Severity) []Rule {
	var out []Rule
	for _, rule := range rules {
		if rule.Criticality() == severity {
			out = append(out, rule)
		}
	}
	return out
}

// attachDiagnostics evaluates one severity group and writes its diagnostic
// column. Rows are evaluated in parallel chunks; each row's cell is built
// independently, so there is no cross-row ordering dependency.
func (e *Engine) attachDiagnostics(ds *dataset.Dataset, rules []Rule, dest string) (*dataset.Dataset, error) {
	if len(rules) == 0 {
		return ds.WithColumn(dest, make([]any, ds.Len()))
	}

	progs := make([]compiled, len(rules))
	for i, rule := range rules {
		prog, err := e.program(rule.Check().Expr())
		if err != nil {
			return nil, fmt.Errorf("failed to compile check for rule %s: %w", rule.Name(), err)
		}
		progs[i] = compiled{name: rule.Name(), prog: prog}
	}

	now := time.Now()
	values := make([]any, ds.Len())

	var g errgroup.Group
	workers := runtime.GOMAXPROCS(0)
	chunk := (ds.Len() + workers - 1) / workers
	for start := 0; start < ds.Len(); start += chunk {
		start := start
		end := min(start+chunk, ds.Len())
		g.Go(func() error {
			for i := start; i < end; i++ {
				cell, err := evalRow(progs, ds.Row(i), now)
				if err != nil {
					return err
				}
				if cell != nil {
					values[i] = cell
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return ds.WithColumn(dest, values)
}

// compiled pairs a rule name with its compiled check program.
type compiled struct {
	name string
	prog cel.Program
}

// evalRow runs every compiled check against one row and collects non-empty
// messages into a name-to-message map. A row with no violations yields nil,
// not an empty map.
func evalRow(progs []compiled, row dataset.Row, now time.Time) (map[string]string, error) {
	vars := map[string]any{
		"row": map[string]any(row),
		"now": now,
	}

	var cell map[string]string
	for _, p := range progs {
		out, _, err := p.prog.Eval(vars)
		if err != nil {
			return nil, fmt.Errorf("evaluating check for rule %s: %w", p.name, err)
		}
		if _, isNull := out.(types.Null); isNull {
			continue
		}
		msg, ok := out.Value().(string)
		if !ok {
			return nil, fmt.Errorf("check for rule %s produced %T, want string", p.name, out.Value())
		}
		if msg == "" {
			continue
		}
		if cell == nil {
			cell = make(map[string]string)
		}
		cell[p.name] = msg
	}
	return cell, nil
}
