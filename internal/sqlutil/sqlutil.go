// Package sqlutil holds small SQL text helpers shared by the compiler.
package sqlutil

import "strings"

// InClause renders a comma-separated placeholder list, binding each item
// through bind so numbered placeholders stay in textual order.
//
// If items is empty, it returns "NULL", so `IN (NULL)` matches nothing.
func InClause(items []any, bind func(any) string) string {
	if len(items) == 0 {
		return "NULL"
	}
	ph := make([]string, len(items))
	for i, item := range items {
		ph[i] = bind(item)
	}
	return strings.Join(ph, ", ")
}
