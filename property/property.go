// Package property implements the small attribute filter language used to
// select among implementations that advertise the same algorithm name.
//
// A definition is what an implementation advertises:
//
//	provider=default,fips=yes,version=1
//
// A query is what a caller asks for:
//
//	fips=yes,-legacy,variant!=slow
//
// Clauses are comma separated. A bare key means key=yes. Keys and values are
// case-sensitive. Matching is conjunctive: every clause of the query must hold.
package property

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed is wrapped by every parse failure.
var ErrMalformed = errors.New("property: malformed query")

// SyntaxError reports where a query or definition failed to parse.
type SyntaxError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("property: %s at offset %d in %q", e.Reason, e.Pos, e.Input)
}

func (e *SyntaxError) Unwrap() error { return ErrMalformed }

// Op is the comparison a clause performs.
type Op uint8

const (
	OpEq     Op = iota + 1 // key=value (bare key is key=yes)
	OpNe                   // key!=value
	OpAbsent               // -key
)

// Clause is a single parsed query term.
type Clause struct {
	Key   string
	Op    Op
	Value string
}

func (c Clause) String() string {
	switch c.Op {
	case OpAbsent:
		return "-" + c.Key
	case OpNe:
		return c.Key + "!=" + quote(c.Value)
	default:
		return c.Key + "=" + quote(c.Value)
	}
}

func (c Clause) holds(a Attributes) bool {
	v, ok := a[c.Key]
	switch c.Op {
	case OpAbsent:
		return !ok
	case OpNe:
		return !ok || v != c.Value
	default:
		return ok && v == c.Value
	}
}

// Query is a parsed, normalized property query. The zero value matches
// every definition.
type Query struct {
	clauses []Clause
}

// Clauses returns a copy of the normalized clauses.
func (q Query) Clauses() []Clause {
	return append([]Clause(nil), q.clauses...)
}

// Empty reports whether q has no clauses.
func (q Query) Empty() bool { return len(q.clauses) == 0 }

// Matches reports whether every clause of q holds for a.
func (q Query) Matches(a Attributes) bool {
	for _, c := range q.clauses {
		if !c.holds(a) {
			return false
		}
	}
	return true
}

// String renders q in normalized form. Two queries that differ only in
// clause order, spacing or duplicates render identically.
func (q Query) String() string {
	if len(q.clauses) == 0 {
		return ""
	}
	parts := make([]string, len(q.clauses))
	for i, c := range q.clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

// Matches is a convenience for q.Matches(a).
func Matches(q Query, a Attributes) bool { return q.Matches(a) }

// Parse parses a query string.
func Parse(s string) (Query, error) {
	terms, err := scan(s, true)
	if err != nil {
		return Query{}, err
	}
	return Query{clauses: normalize(terms)}, nil
}

// MustParse is like Parse but panics on error. Meant for package-level
// variables and tests.
func MustParse(s string) Query {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

// Merge overlays q on top of defaults: any key mentioned by q replaces
// every default clause for the same key.
func Merge(defaults, q Query) Query {
	if defaults.Empty() {
		return q
	}
	if q.Empty() {
		return defaults
	}
	own := make(map[string]struct{}, len(q.clauses))
	for _, c := range q.clauses {
		own[c.Key] = struct{}{}
	}
	out := make([]Clause, 0, len(defaults.clauses)+len(q.clauses))
	for _, c := range defaults.clauses {
		if _, ok := own[c.Key]; !ok {
			out = append(out, c)
		}
	}
	out = append(out, q.clauses...)
	return Query{clauses: normalize(out)}
}

// Attributes is the set of key/value pairs an implementation advertises.
type Attributes map[string]string

// ParseDefinition parses an implementation's property definition. Only
// key and key=value terms are allowed, and each key may appear once.
func ParseDefinition(s string) (Attributes, error) {
	terms, err := scan(s, false)
	if err != nil {
		return nil, err
	}
	out := make(Attributes, len(terms))
	for _, t := range terms {
		if prev, dup := out[t.Key]; dup && prev != t.Value {
			return nil, &SyntaxError{Input: s, Pos: 0, Reason: "conflicting values for " + t.Key}
		}
		out[t.Key] = t.Value
	}
	return out, nil
}

// String renders the attributes sorted by key.
func (a Attributes) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + quote(a[k])
	}
	return strings.Join(parts, ",")
}

func normalize(in []Clause) []Clause {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Key != in[j].Key {
			return in[i].Key < in[j].Key
		}
		if in[i].Op != in[j].Op {
			return in[i].Op < in[j].Op
		}
		return in[i].Value < in[j].Value
	})
	out := in[:0]
	for i, c := range in {
		if i > 0 && c == in[i-1] {
			continue
		}
		out = append(out, c)
	}
	return append([]Clause(nil), out...)
}

func quote(v string) string {
	if !strings.ContainsAny(v, ",=! \t'\"") {
		return v
	}
	if strings.ContainsRune(v, '"') {
		return "'" + v + "'"
	}
	return `"` + v + `"`
}
