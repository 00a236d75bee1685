package sqlgen

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/aidanlsb/sqlgraph/internal/querytree"
	"github.com/aidanlsb/sqlgraph/internal/schema"
	"github.com/aidanlsb/sqlgraph/internal/sqlutil"
)

// BulkTablePrefix starts the name of every temporary membership table.
const BulkTablePrefix = "V_BULK_"

// Column names of temporary membership tables.
const (
	WithinColumn  = "within"
	WithoutColumn = "without"
)

// TempTableName builds a unique temporary table name for a filter key.
func TempTableName(key string) string {
	k := strings.ReplaceAll(slug.Make(key), "-", "_")
	if k == "" {
		k = "key"
	}
	return BulkTablePrefix + k + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func compareOpToSQL(pred querytree.PredicateKind) string {
	switch pred {
	case querytree.PredNeq:
		return "<>"
	case querytree.PredLt:
		return "<"
	case querytree.PredLte:
		return "<="
	case querytree.PredGt:
		return ">"
	case querytree.PredGte:
		return ">="
	default:
		return "="
	}
}

// escapeLikePattern escapes special characters for LIKE pattern matching.
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}

// predicate renders one filter of node id as a condition. When allowBulk is
// set, a within/without list longer than the dialect's inline threshold
// becomes a temporary table and the returned join replaces the IN list.
func (b *builder) predicate(id querytree.NodeID, f querytree.Filter, allowBulk bool) (string, string, error) {
	n := b.node(id)

	if f.Key == querytree.LabelKey {
		if f.MatchesTable(n.Table) {
			return "", "", nil
		}
		return "1 = 0", "", nil
	}

	column := f.Key
	propType := schema.TypeLong
	if f.Key == querytree.IDKey {
		column = schema.IDColumn
	} else {
		prop, postfix, ok := b.cat.ResolveColumn(n.Table, column)
		if !ok || postfix != "" {
			return "", "", fmt.Errorf("%w: %s has no property %q", querytree.ErrStructuralViolation, n.Table, f.Key)
		}
		if prop.Type != "" {
			propType = prop.Type
		}
	}
	expr := b.col(id, column)

	switch f.Predicate {
	case querytree.PredEq, querytree.PredNeq, querytree.PredLt, querytree.PredLte, querytree.PredGt, querytree.PredGte:
		return fmt.Sprintf("%s %s %s", expr, compareOpToSQL(f.Predicate), b.bind(f.Value)), "", nil

	case querytree.PredWithin, querytree.PredWithout:
		without := f.Predicate == querytree.PredWithout
		if without && len(f.Values) == 0 {
			return "", "", nil
		}
		d := b.c.dialect
		if allowBulk && d.SupportsBulkMembership() && len(f.Values) > d.InlineListThreshold() {
			return b.bulkMembership(expr, f, propType, without)
		}
		op := "IN"
		if without {
			op = "NOT IN"
		}
		return fmt.Sprintf("%s %s (%s)", expr, op, sqlutil.InClause(f.Values, b.bind)), "", nil

	case querytree.PredStartsWith, querytree.PredEndsWith, querytree.PredContains, querytree.PredNotContains:
		s, ok := f.Value.(string)
		if !ok {
			return "", "", fmt.Errorf("%w: %s on %q needs a string, got %T", querytree.ErrUnsupportedPredicate, f.Predicate, f.Key, f.Value)
		}
		pattern := escapeLikePattern(s)
		switch f.Predicate {
		case querytree.PredStartsWith:
			pattern += "%"
		case querytree.PredEndsWith:
			pattern = "%" + pattern
		default:
			pattern = "%" + pattern + "%"
		}
		op := "LIKE"
		if f.Predicate == querytree.PredNotContains {
			op = "NOT LIKE"
		}
		return fmt.Sprintf("%s %s %s ESCAPE '\\'", expr, op, b.bind(pattern)), "", nil
	}

	return "", "", fmt.Errorf("%w: %s", querytree.ErrUnsupportedPredicate, f.Predicate)
}

// distinctValues drops repeated operands, keeping first occurrences in order.
// A temporary table holding a value twice would join each matching row twice.
func distinctValues(values []any) []any {
	seen := make(map[string]struct{}, len(values))
	out := make([]any, 0, len(values))
	for _, v := range values {
		k := fmt.Sprintf("%T\x00%v", v, v)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out
}

// bulkMembership registers a temporary table for a large within/without and
// returns its condition and join. within joins INNER; without joins LEFT and
// keeps rows with no match.
func (b *builder) bulkMembership(expr string, f querytree.Filter, propType schema.PropertyType, without bool) (string, string, error) {
	d := b.c.dialect
	column := WithinColumn
	if without {
		column = WithoutColumn
	}
	bt := BulkTable{
		Name:       b.c.tempName(f.Key),
		Column:     column,
		ColumnType: d.ColumnType(propType),
		Values:     distinctValues(f.Values),
		Without:    without,
	}
	b.bulk = append(b.bulk, bt)

	tAlias := "m" + strconv.Itoa(b.bulkCount)
	b.bulkCount++
	ref := tAlias + "." + d.Quote(column)

	if without {
		join := fmt.Sprintf("LEFT JOIN %s AS %s ON %s = %s", d.Quote(bt.Name), tAlias, expr, ref)
		return ref + " IS NULL", join, nil
	}
	return "", fmt.Sprintf("INNER JOIN %s AS %s ON %s = %s", d.Quote(bt.Name), tAlias, expr, ref), nil
}
