// Package query is the small predicate language used to list documents:
// equality filters, ordering, limit and offset. A Set is an ordered,
// append-only sequence of predicates; consumers never rewrite entries.
package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Method names the predicate kind. Values match the wire form used by clients.
type Method string

const (
	MethodEqual     Method = "equal"
	MethodOrderAsc  Method = "orderAsc"
	MethodOrderDesc Method = "orderDesc"
	MethodLimit     Method = "limit"
	MethodOffset    Method = "offset"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var fieldPattern = regexp.MustCompile(`^\$?[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// Predicate is a single filter, sort or window expression.
type Predicate struct {
	Method    Method   `json:"method"`
	Attribute string   `json:"attribute,omitempty"`
	Values    []string `json:"values,omitempty"`
}

// Set is an ordered collection of predicates.
type Set []Predicate

// Equal matches documents whose attribute equals any of values.
func Equal(attribute string, values ...any) Predicate {
	formatted := make([]string, 0, len(values))
	for _, v := range values {
		formatted = append(formatted, FormatValue(v))
	}
	return Predicate{Method: MethodEqual, Attribute: attribute, Values: formatted}
}

func OrderAsc(attribute string) Predicate {
	return Predicate{Method: MethodOrderAsc, Attribute: attribute}
}

func OrderDesc(attribute string) Predicate {
	return Predicate{Method: MethodOrderDesc, Attribute: attribute}
}

func Limit(n int) Predicate {
	return Predicate{Method: MethodLimit, Values: []string{strconv.Itoa(n)}}
}

func Offset(n int) Predicate {
	return Predicate{Method: MethodOffset, Values: []string{strconv.Itoa(n)}}
}

// Append returns a new Set with preds added after the existing entries. The receiver is not modified.
func (s Set) Append(preds ...Predicate) Set {
	out := make(Set, 0, len(s)+len(preds))
	out = append(out, s...)
	return append(out, preds...)
}

// Validate checks every predicate is well formed.
func (s Set) Validate() error {
	for i, p := range s {
		if err := p.validate(); err != nil {
			return fmt.Errorf("query %d: %w", i, err)
		}
	}
	return nil
}

func (p Predicate) validate() error {
	switch p.Method {
	case MethodEqual:
		if !fieldPattern.MatchString(p.Attribute) {
			return fmt.Errorf("invalid attribute %q", p.Attribute)
		}
		if len(p.Values) == 0 {
			return fmt.Errorf("equal on %q requires at least one value", p.Attribute)
		}
	case MethodOrderAsc, MethodOrderDesc:
		if !fieldPattern.MatchString(p.Attribute) {
			return fmt.Errorf("invalid attribute %q", p.Attribute)
		}
	case MethodLimit:
		n, err := p.count()
		if err != nil {
			return err
		}
		if n < 0 || n > MaxLimit {
			return fmt.Errorf("limit must be between 0 and %d", MaxLimit)
		}
	case MethodOffset:
		n, err := p.count()
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("offset must not be negative")
		}
	default:
		return fmt.Errorf("unsupported method %q", p.Method)
	}
	return nil
}

func (p Predicate) count() (int, error) {
	if len(p.Values) != 1 {
		return 0, fmt.Errorf("%s requires exactly one value", p.Method)
	}
	n, err := strconv.Atoi(p.Values[0])
	if err != nil {
		return 0, fmt.Errorf("%s value %q is not an integer", p.Method, p.Values[0])
	}
	return n, nil
}

// Parse decodes the JSON-encoded predicates sent as repeated `queries` parameters.
func Parse(raw []string) (Set, error) {
	set := make(Set, 0, len(raw))
	for _, item := range raw {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		var p Predicate
		if err := json.Unmarshal([]byte(item), &p); err != nil {
			return nil, fmt.Errorf("decode query %q: %w", item, err)
		}
		set = append(set, p)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Plan splits a validated Set into filters, orders and the effective window.
// When several limit or offset entries are present the last one wins.
type Plan struct {
	Filters []Predicate
	Orders  []Predicate
	Limit   int
	Offset  int
}

func (s Set) Plan() (Plan, error) {
	if err := s.Validate(); err != nil {
		return Plan{}, err
	}
	plan := Plan{Limit: DefaultLimit}
	for _, p := range s {
		switch p.Method {
		case MethodEqual:
			plan.Filters = append(plan.Filters, p)
		case MethodOrderAsc, MethodOrderDesc:
			plan.Orders = append(plan.Orders, p)
		case MethodLimit:
			plan.Limit, _ = p.count()
		case MethodOffset:
			plan.Offset, _ = p.count()
		}
	}
	return plan, nil
}

// FormatValue renders a scalar the way PostgreSQL's ->> operator renders JSON scalars,
// so equality behaves the same in SQL and in memory.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
