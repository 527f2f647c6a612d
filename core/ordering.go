package core

import (
	"fmt"
	"strings"
)

const orderingParam = "ordering"

// Ordering sorts a listing on one field. Fields are named like their JSON (and column) names.
type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	if ord.Ascending {
		return ord.Field + " ASC"
	}
	return ord.Field + " DESC"
}

// ParseOrderings parses a comma separated list of fields, each prefixed with "-" for a
// descending order (ie: "name,-created_at"). Every field must be one of allowed.
func ParseOrderings(s string, allowed ...string) ([]Ordering, error) {
	var orderings []Ordering
	for _, field := range strings.Split(s, ",") {
		field = CleanString(field, true /* lower */)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if !isAllowed(field, allowed) {
			return nil, NewValidationError(nil, FieldError{
				Field: orderingParam,
				Error: fmt.Sprintf("cannot order by %q, expected one of: %s", field, strings.Join(allowed, ", ")),
			})
		}
		orderings = append(orderings, Ordering{Field: field, Ascending: !descending})
	}
	return orderings, nil
}

func isAllowed(field string, allowed []string) bool {
	for _, f := range allowed {
		if f == field {
			return true
		}
	}
	return false
}
