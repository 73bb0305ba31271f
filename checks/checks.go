// Package checks provides the built-in catalog of data-quality check
// functions. A check function composes a CEL expression over a `row` map
// variable; per row the expression evaluates to the violation message, or to
// the empty string when the row passes. The engine turns empty messages into
// null diagnostics.
//
// A `now` timestamp variable is bound by the engine at evaluation time for
// time-based checks.
package checks

import "fmt"

// Check is an executable quality check expression. It is pure data: the CEL
// source plus the alias used for default rule naming. Compilation happens in
// the engine, which caches programs by source.
type Check struct {
	column string
	alias  string
	expr   string
}

// NewCheck creates a check from a raw CEL expression. The expression must
// evaluate to a string: the violation message, or "" when the row passes.
// The alias names the check, conventionally "<column>_<function>".
func NewCheck(column, alias, expr string) *Check {
	return &Check{column: column, alias: alias, expr: expr}
}

// Column returns the primary column the check inspects, or "" for checks
// over arbitrary expressions.
func (c *Check) Column() string { return c.column }

// Alias returns the canonical name of the check, e.g. "vendor_id_is_not_null".
func (c *Check) Alias() string { return c.alias }

// Expr returns the CEL source of the check.
func (c *Check) Expr() string { return c.expr }

// colRef renders an index into the row map.
func colRef(column string) string {
	return "row[" + QuoteString(column) + "]"
}

// isNull covers both an absent key and an explicit null value.
func isNull(column string) string {
	return fmt.Sprintf("(!(%s in row) || %s == null)", QuoteString(column), colRef(column))
}

func notNull(column string) string {
	return fmt.Sprintf("((%s in row) && %s != null)", QuoteString(column), colRef(column))
}

// guarded builds the standard check shape: message when the condition holds,
// empty string otherwise.
func guarded(condition, message string) string {
	return fmt.Sprintf("(%s) ? %s : \"\"", condition, message)
}

// IsNotNull fails rows where the column is null or absent.
func IsNotNull(column string) *Check {
	return NewCheck(column, column+"_is_not_null",
		guarded(isNull(column), QuoteString("Column "+column+" is null")))
}

// IsNotEmpty fails rows where the column value casts to an empty string.
// Null values pass; combine with IsNotNull to reject both.
func IsNotEmpty(column string) *Check {
	cond := fmt.Sprintf("%s && string(%s) == \"\"", notNull(column), colRef(column))
	return NewCheck(column, column+"_is_not_empty",
		guarded(cond, QuoteString("Column "+column+" is empty")))
}

// IsNotNullAndNotEmpty fails rows where the column is null or empty. With
// trimStrings, surrounding whitespace is stripped before the emptiness test.
func IsNotNullAndNotEmpty(column string, trimStrings bool) *Check {
	value := fmt.Sprintf("string(%s)", colRef(column))
	if trimStrings {
		value += ".trim()"
	}
	cond := fmt.Sprintf("%s || %s == \"\"", isNull(column), value)
	return NewCheck(column, column+"_is_not_null_and_not_empty",
		guarded(cond, QuoteString("Column "+column+" is null or empty")))
}

// ValueIsInList fails rows whose non-null value is outside the allowed list.
func ValueIsInList(column string, allowed []any) (*Check, error) {
	list, err := Literal(allowed)
	if err != nil {
		return nil, fmt.Errorf("rendering allowed list for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s && !(%s in %s)", notNull(column), colRef(column), list)
	message := fmt.Sprintf("%s + string(%s) + %s",
		QuoteString("Value "), colRef(column), QuoteString(" is not in the list of allowed values"))
	return NewCheck(column, column+"_value_is_in_list", guarded(cond, message)), nil
}

// ValueIsNotNullAndIsInList fails rows whose value is null or outside the
// allowed list.
func ValueIsNotNullAndIsInList(column string, allowed []any) (*Check, error) {
	list, err := Literal(allowed)
	if err != nil {
		return nil, fmt.Errorf("rendering allowed list for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s || !(%s in %s)", isNull(column), colRef(column), list)
	return NewCheck(column, column+"_value_is_not_null_and_is_in_list",
		guarded(cond, QuoteString("Value is null or not in the list of allowed values"))), nil
}

// NotLessThan fails rows whose non-null value is below the limit.
func NotLessThan(column string, limit any) (*Check, error) {
	lit, err := Literal(limit)
	if err != nil {
		return nil, fmt.Errorf("rendering limit for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s && %s < %s", notNull(column), colRef(column), lit)
	return NewCheck(column, column+"_not_less_than",
		guarded(cond, QuoteString(fmt.Sprintf("Value is less than limit %s", FormatValue(limit))))), nil
}

// NotGreaterThan fails rows whose non-null value is above the limit.
func NotGreaterThan(column string, limit any) (*Check, error) {
	lit, err := Literal(limit)
	if err != nil {
		return nil, fmt.Errorf("rendering limit for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s && %s > %s", notNull(column), colRef(column), lit)
	return NewCheck(column, column+"_not_greater_than",
		guarded(cond, QuoteString(fmt.Sprintf("Value is greater than limit %s", FormatValue(limit))))), nil
}

// IsInRange fails rows whose non-null value falls outside [min, max].
func IsInRange(column string, minLimit, maxLimit any) (*Check, error) {
	minLit, err := Literal(minLimit)
	if err != nil {
		return nil, fmt.Errorf("rendering min limit for column %s: %w", column, err)
	}
	maxLit, err := Literal(maxLimit)
	if err != nil {
		return nil, fmt.Errorf("rendering max limit for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s && (%s < %s || %s > %s)",
		notNull(column), colRef(column), minLit, colRef(column), maxLit)
	message := fmt.Sprintf("Value is not in the range [%s, %s]", FormatValue(minLimit), FormatValue(maxLimit))
	return NewCheck(column, column+"_is_in_range", guarded(cond, QuoteString(message))), nil
}

// IsNotInRange fails rows whose non-null value falls inside [min, max].
func IsNotInRange(column string, minLimit, maxLimit any) (*Check, error) {
	minLit, err := Literal(minLimit)
	if err != nil {
		return nil, fmt.Errorf("rendering min limit for column %s: %w", column, err)
	}
	maxLit, err := Literal(maxLimit)
	if err != nil {
		return nil, fmt.Errorf("rendering max limit for column %s: %w", column, err)
	}
	cond := fmt.Sprintf("%s && %s >= %s && %s <= %s",
		notNull(column), colRef(column), minLit, colRef(column), maxLit)
	message := fmt.Sprintf("Value is in the range [%s, %s]", FormatValue(minLimit), FormatValue(maxLimit))
	return NewCheck(column, column+"_is_not_in_range", guarded(cond, QuoteString(message))), nil
}

// RegexMatch fails rows whose non-null value does not match the pattern, or
// with negate, rows whose value does match it.
func RegexMatch(column, pattern string, negate bool) *Check {
	match := fmt.Sprintf("string(%s).matches(%s)", colRef(column), QuoteString(pattern))
	cond := fmt.Sprintf("%s && !%s", notNull(column), match)
	message := "Column " + column + " does not match regex"
	if negate {
		cond = fmt.Sprintf("%s && %s", notNull(column), match)
		message = "Column " + column + " matches regex"
	}
	return NewCheck(column, column+"_regex_match", guarded(cond, QuoteString(message)))
}

// NotInFuture fails rows whose timestamp value lies more than offset seconds
// past the evaluation time. Values are expected as RFC 3339 strings.
func NotInFuture(column string, offsetSeconds int64) *Check {
	cond := fmt.Sprintf("%s && timestamp(string(%s)) > now + duration(\"%ds\")",
		notNull(column), colRef(column), offsetSeconds)
	return NewCheck(column, column+"_not_in_future",
		guarded(cond, QuoteString("Value is in the future")))
}

// Expression wraps a raw CEL boolean condition over the row. The message is
// emitted when the condition holds. Name defaults to "expression" when empty.
func Expression(condition, message, name string) *Check {
	if name == "" {
		name = "expression"
	}
	if message == "" {
		message = condition
	}
	return NewCheck("", name, guarded(condition, QuoteString(message)))
}
