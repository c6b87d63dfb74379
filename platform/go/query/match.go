package query

import (
	"sort"
)

// Getter resolves an attribute on an in-memory document.
type Getter func(attribute string) (any, bool)

// Matches reports whether the document satisfies every equality filter in the plan.
func (p Plan) Matches(get Getter) bool {
	for _, f := range p.Filters {
		v, ok := get(f.Attribute)
		if !ok {
			return false
		}
		formatted := FormatValue(v)
		hit := false
		for _, want := range f.Values {
			if formatted == want {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Sort orders items in place using the plan's orders, with id as the final tiebreaker.
func (p Plan) Sort(n int, get func(i int) Getter, id func(i int) string, swap func(i, j int)) {
	sort.Sort(sorter{plan: p, n: n, get: get, id: id, swap: swap})
}

// Window returns the [start, end) bounds for a result of length n.
func (p Plan) Window(n int) (int, int) {
	start := p.Offset
	if start > n {
		start = n
	}
	end := start + p.Limit
	if end > n {
		end = n
	}
	return start, end
}

type sorter struct {
	plan Plan
	n    int
	get  func(i int) Getter
	id   func(i int) string
	swap func(i, j int)
}

func (s sorter) Len() int      { return s.n }
func (s sorter) Swap(i, j int) { s.swap(i, j) }

func (s sorter) Less(i, j int) bool {
	for _, o := range s.plan.Orders {
		a, _ := s.get(i)(o.Attribute)
		b, _ := s.get(j)(o.Attribute)
		fa, fb := FormatValue(a), FormatValue(b)
		if fa == fb {
			continue
		}
		if o.Method == MethodOrderDesc {
			return fa > fb
		}
		return fa < fb
	}
	return s.id(i) < s.id(j)
}
