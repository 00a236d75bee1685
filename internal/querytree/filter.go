package querytree

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

var (
	// ErrStructuralViolation reports a tree that cannot be compiled as built.
	ErrStructuralViolation = errors.New("structural violation")

	// ErrUnsupportedPredicate reports a predicate or ordering the compiler
	// has no SQL form for.
	ErrUnsupportedPredicate = errors.New("unsupported predicate")
)

// Reserved filter keys.
const (
	LabelKey = "~label"
	IDKey    = "~id"
)

// PredicateKind is the comparison a filter applies.
type PredicateKind int

const (
	PredEq PredicateKind = iota
	PredNeq
	PredLt
	PredLte
	PredGt
	PredGte
	PredWithin
	PredWithout
	PredStartsWith
	PredEndsWith
	PredContains
	PredNotContains
)

var predicateNames = []string{
	PredEq:          "eq",
	PredNeq:         "neq",
	PredLt:          "lt",
	PredLte:         "lte",
	PredGt:          "gt",
	PredGte:         "gte",
	PredWithin:      "within",
	PredWithout:     "without",
	PredStartsWith:  "startsWith",
	PredEndsWith:    "endsWith",
	PredContains:    "contains",
	PredNotContains: "notContains",
}

func (k PredicateKind) String() string {
	if k.Valid() {
		return predicateNames[k]
	}
	return fmt.Sprintf("PredicateKind(%d)", int(k))
}

// Valid reports whether k is a known predicate.
func (k PredicateKind) Valid() bool {
	return k >= PredEq && int(k) < len(predicateNames)
}

// ParsePredicate maps a predicate name (case-insensitive) to its kind.
func ParsePredicate(s string) (PredicateKind, error) {
	for i, name := range predicateNames {
		if strings.EqualFold(name, s) {
			return PredicateKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedPredicate, s)
}

// Filter is a single has-container: a key compared against one value or,
// for within/without, a set of values.
type Filter struct {
	Key       string
	Predicate PredicateKind
	Value     any
	Values    []any
}

// Has builds a single-valued filter.
func Has(key string, pred PredicateKind, value any) Filter {
	return Filter{Key: key, Predicate: pred, Value: value}
}

// Within builds a membership filter.
func Within(key string, values ...any) Filter {
	return Filter{Key: key, Predicate: PredWithin, Values: values}
}

// Without builds a non-membership filter.
func Without(key string, values ...any) Filter {
	return Filter{Key: key, Predicate: PredWithout, Values: values}
}

// Multi reports whether the filter compares against a value set.
func (f Filter) Multi() bool {
	return f.Predicate == PredWithin || f.Predicate == PredWithout
}

// Reserved reports whether the filter targets ~label or ~id.
func (f Filter) Reserved() bool {
	return f.Key == LabelKey || f.Key == IDKey
}

func (f Filter) String() string {
	if f.Multi() {
		return fmt.Sprintf("%s %s %v", f.Key, f.Predicate, f.Values)
	}
	return fmt.Sprintf("%s %s %v", f.Key, f.Predicate, f.Value)
}

// evalLabel statically evaluates a ~label filter against the names a table
// answers to.
func (f Filter) evalLabel(names []string) bool {
	matches := func(v any) bool {
		s := fmt.Sprint(v)
		for _, n := range names {
			if n == s {
				return true
			}
		}
		return false
	}
	raw := names[0]
	s := fmt.Sprint(f.Value)

	switch f.Predicate {
	case PredEq:
		return matches(f.Value)
	case PredNeq:
		return !matches(f.Value)
	case PredWithin, PredWithout:
		in := false
		for _, v := range f.Values {
			if matches(v) {
				in = true
				break
			}
		}
		return in == (f.Predicate == PredWithin)
	case PredLt:
		return raw < s
	case PredLte:
		return raw <= s
	case PredGt:
		return raw > s
	case PredGte:
		return raw >= s
	case PredStartsWith:
		return strings.HasPrefix(raw, s)
	case PredEndsWith:
		return strings.HasSuffix(raw, s)
	case PredContains:
		return strings.Contains(raw, s)
	case PredNotContains:
		return !strings.Contains(raw, s)
	}
	return false
}

// OrderKind distinguishes ordering by a property of the current element from
// ordering by a property of an earlier labeled step.
type OrderKind int

const (
	OrderByProperty OrderKind = iota
	OrderBySelect
)

// Order is the sort direction.
type Order int

const (
	Asc Order = iota
	Desc
)

func (o Order) String() string {
	if o == Desc {
		return "DESC"
	}
	return "ASC"
}

// ParseOrder accepts "asc"/"incr" and "desc"/"decr". Empty means ascending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(s) {
	case "", "asc", "incr":
		return Asc, nil
	case "desc", "decr":
		return Desc, nil
	}
	return Asc, fmt.Errorf("%w: order %q", ErrUnsupportedPredicate, s)
}

// Ordering is one ORDER BY term.
type Ordering struct {
	Kind   OrderKind
	Key    string
	Select string
	Order  Order
}

// By orders by a property of the current element.
func By(key string, order Order) Ordering {
	return Ordering{Kind: OrderByProperty, Key: key, Order: order}
}

// BySelect orders by a property of the step labeled label.
func BySelect(label, key string, order Order) Ordering {
	return Ordering{Kind: OrderBySelect, Key: key, Select: label, Order: order}
}

// MatchesTable statically evaluates a ~label filter against st.
func (f Filter) MatchesTable(st schema.SchemaTable) bool {
	return f.evalLabel(tableNames(st))
}
