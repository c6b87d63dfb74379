package query

import (
	"fmt"
	"strings"
)

// systemColumns maps reserved attributes onto real columns of the documents table.
// Everything else addresses a key of the JSONB payload.
var systemColumns = map[string]string{
	"$id":           "document_id",
	"$createdAt":    "created_at",
	"$updatedAt":    "updated_at",
	"institutionId": "institution_id",
	"ownerId":       "owner_id",
}

// Compiled is a parameterized SQL fragment for the documents table.
type Compiled struct {
	// Conditions are ANDed together; empty means no filter.
	Conditions []string
	OrderBy    string
	Limit      int
	Offset     int
	Args       []any
}

// Where renders the WHERE clause, or "" when there are no conditions.
func (c Compiled) Where() string {
	if len(c.Conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(c.Conditions, " AND ")
}

// Compile turns a Set into SQL. Placeholders start at $firstArg so callers can bind their own leading args.
// Values are always bound, never interpolated. Ordering always ends on document_id for a stable page order.
func Compile(set Set, firstArg int) (Compiled, error) {
	plan, err := set.Plan()
	if err != nil {
		return Compiled{}, err
	}

	out := Compiled{Limit: plan.Limit, Offset: plan.Offset}
	next := firstArg
	bind := func(v any) string {
		out.Args = append(out.Args, v)
		placeholder := fmt.Sprintf("$%d", next)
		next++
		return placeholder
	}

	expr := func(attribute string) string {
		if col, ok := systemColumns[attribute]; ok {
			if col == "created_at" || col == "updated_at" {
				return col + "::text"
			}
			return col
		}
		return fmt.Sprintf("data->>(%s::text)", bind(attribute))
	}

	for _, f := range plan.Filters {
		lhs := expr(f.Attribute)
		out.Conditions = append(out.Conditions, fmt.Sprintf("%s = ANY(%s::text[])", lhs, bind(f.Values)))
	}

	orders := make([]string, 0, len(plan.Orders)+1)
	for _, o := range plan.Orders {
		dir := "ASC"
		if o.Method == MethodOrderDesc {
			dir = "DESC"
		}
		col := o.Attribute
		if c, ok := systemColumns[col]; ok {
			orders = append(orders, c+" "+dir)
			continue
		}
		orders = append(orders, expr(col)+" "+dir)
	}
	orders = append(orders, "document_id ASC")
	out.OrderBy = "ORDER BY " + strings.Join(orders, ", ")

	return out, nil
}
