package tablesvc

import (
	"fmt"
	"strings"
)

// Expr is a single PostgREST operator expression, without the column it
// applies to. Building expressions through the constructors below (instead
// of raw "gte.100" strings) keeps operator and value separate until
// serialization, so two range bounds on the same column serialize as two
// independent querystring entries. PostgREST conjoins repeated keys; a flat
// column->string map would silently keep only one bound.
type Expr struct {
	op    string
	value string
}

func (e Expr) String() string {
	return e.op + "." + e.value
}

// Eq matches rows where the column equals v.
func Eq(v interface{}) Expr { return Expr{"eq", fmt.Sprint(v)} }

// Neq matches rows where the column does not equal v.
func Neq(v interface{}) Expr { return Expr{"neq", fmt.Sprint(v)} }

// Gt matches rows where the column is greater than v.
func Gt(v interface{}) Expr { return Expr{"gt", fmt.Sprint(v)} }

// Gte matches rows where the column is greater than or equal to v.
func Gte(v interface{}) Expr { return Expr{"gte", fmt.Sprint(v)} }

// Lt matches rows where the column is less than v.
func Lt(v interface{}) Expr { return Expr{"lt", fmt.Sprint(v)} }

// Lte matches rows where the column is less than or equal to v.
func Lte(v interface{}) Expr { return Expr{"lte", fmt.Sprint(v)} }

// Like matches rows where the column matches the pattern (use * as wildcard).
func Like(pattern string) Expr { return Expr{"like", pattern} }

// Ilike is a case-insensitive Like.
func Ilike(pattern string) Expr { return Expr{"ilike", pattern} }

// In matches rows where the column is any of the values.
func In(values ...string) Expr {
	return Expr{"in", "(" + strings.Join(values, ",") + ")"}
}

// Contains matches rows where an array column contains all the values.
func Contains(values ...string) Expr {
	return Expr{"cs", "{" + strings.Join(values, ",") + "}"}
}

// IsNull matches rows where the column is NULL.
func IsNull() Expr { return Expr{"is", "null"} }

// NotNull matches rows where the column is not NULL.
func NotNull() Expr { return Expr{"not.is", "null"} }

// Cond binds an expression to a column.
type Cond struct {
	Column string
	Expr   Expr
}

// C is shorthand for constructing a Cond.
func C(column string, expr Expr) Cond {
	return Cond{Column: column, Expr: expr}
}

func (c Cond) String() string {
	return c.Column + "." + c.Expr.String()
}

// Order is a single ordering term.
type Order struct {
	Column string
	Desc   bool
}

func (o Order) String() string {
	if o.Desc {
		return o.Column + ".desc"
	}
	return o.Column + ".asc"
}

// QueryParams describe one table query. Conds are conjunctive: every listed
// condition must hold, and repeated columns are allowed (e.g. a gte and an
// lte bound on the same column). Or lists alternatives, of which at least
// one must hold; it serializes to a single or=(...) entry.
type QueryParams struct {
	Select     string
	Conds      []Cond
	Or         []Cond
	OrderBy    []Order
	Limit      uint64
	Offset     uint64
	ExactCount bool
}

// Encode serializes the parameters into a PostgREST querystring. Conditions
// are emitted in declaration order so that identical queries produce
// identical strings (the query cache keys on the full URL).
func (p QueryParams) Encode() string {
	var sb strings.Builder
	add := func(key, value string) {
		if sb.Len() > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(key)
		sb.WriteByte('=')
		sb.WriteString(escapeQueryValue(value))
	}

	if p.Select != "" {
		add("select", p.Select)
	}
	for _, c := range p.Conds {
		add(c.Column, c.Expr.String())
	}
	if len(p.Or) > 0 {
		terms := make([]string, 0, len(p.Or))
		for _, c := range p.Or {
			terms = append(terms, c.String())
		}
		add("or", "("+strings.Join(terms, ",")+")")
	}
	if len(p.OrderBy) > 0 {
		terms := make([]string, 0, len(p.OrderBy))
		for _, o := range p.OrderBy {
			terms = append(terms, o.String())
		}
		add("order", strings.Join(terms, ","))
	}
	if p.Limit > 0 {
		add("limit", fmt.Sprint(p.Limit))
	}
	if p.Offset > 0 {
		add("offset", fmt.Sprint(p.Offset))
	}
	return sb.String()
}

// escapeQueryValue percent-encodes the characters that would corrupt the
// querystring while leaving PostgREST's own syntax (dots, commas, parens,
// asterisks) readable.
func escapeQueryValue(v string) string {
	var sb strings.Builder
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case strings.IndexByte(".,()*_-:/{}", c) >= 0:
			sb.WriteByte(c)
		default:
			fmt.Fprintf(&sb, "%%%02X", c)
		}
	}
	return sb.String()
}
