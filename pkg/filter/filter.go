// Package filter builds query-filter expressions in the remote service's
// grammar, e.g. `payeeId eq 'P-100' and created ge 2024-01-01`.
//
// Everything here is pure string construction; no network, no state.
package filter

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Expr is a filter expression fragment.
type Expr interface {
	fmt.Stringer
}

type comparison struct {
	field    string
	operator string
	value    any
}

func (c comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.field, c.operator, literal(c.value))
}

// Eq matches field equal to value. String values support the remote
// grammar's '*' wildcard and the literal 'null'.
func Eq(field string, value any) Expr { return comparison{field, "eq", value} }

// Ne matches field not equal to value.
func Ne(field string, value any) Expr { return comparison{field, "ne", value} }

// Gt matches field greater than value.
func Gt(field string, value any) Expr { return comparison{field, "gt", value} }

// Ge matches field greater than or equal to value.
func Ge(field string, value any) Expr { return comparison{field, "ge", value} }

// Lt matches field lesser than value.
func Lt(field string, value any) Expr { return comparison{field, "lt", value} }

// Le matches field lesser than or equal to value.
func Le(field string, value any) Expr { return comparison{field, "le", value} }

type boolean struct {
	operator string
	exprs    []Expr
}

func (b boolean) String() string {
	parts := make([]string, 0, len(b.exprs))
	for _, e := range b.exprs {
		if s := e.String(); s != "" {
			parts = append(parts, s)
		}
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return "(" + strings.Join(parts, " "+b.operator+" ") + ")"
}

// And requires every expression to hold.
func And(exprs ...Expr) Expr { return boolean{"and", exprs} }

// Or requires any expression to hold.
func Or(exprs ...Expr) Expr { return boolean{"or", exprs} }

// Raw wraps a pre-built expression string.
type Raw string

func (r Raw) String() string { return string(r) }

// literal renders a value per the grammar's literal rules: integers bare,
// dates as YYYY-MM-DD, strings single-quoted with embedded quotes doubled.
func literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", v)
	case bool:
		return fmt.Sprintf("%t", v)
	case time.Time:
		return v.Format(dateLayout)
	case fmt.Stringer:
		return quote(v.String())
	default:
		return quote(fmt.Sprintf("%v", v))
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// Build combines equality predicates and an optional raw expression with
// logical AND into one filter string. Predicates are emitted in field-name
// order so the output is deterministic. Empty inputs produce an empty
// string, which callers interpret as fetch-all.
func Build(predicates map[string]any, raw string) string {
	if len(predicates) == 0 {
		return raw
	}

	fields := make([]string, 0, len(predicates))
	for field := range predicates {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	exprs := make([]Expr, 0, len(fields)+1)
	for _, field := range fields {
		exprs = append(exprs, Eq(field, predicates[field]))
	}
	if raw != "" {
		// Parenthesized so a raw 'a or b' does not rebind the predicates.
		exprs = append(exprs, Raw("("+raw+")"))
	}

	clauses := make([]string, 0, len(exprs))
	for _, e := range exprs {
		clauses = append(clauses, e.String())
	}
	return strings.Join(clauses, " and ")
}
