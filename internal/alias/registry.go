// Package alias assigns short, unique SQL column aliases to logical columns
// and remembers the mapping in both directions so result rows can be decoded.
package alias

import (
	"sort"
	"strconv"
	"strings"

	"github.com/aidanlsb/sqlgraph/internal/schema"
)

// Prefix starts every generated alias.
const Prefix = "alias"

// Hidden marks helper columns (join keys, sort keys) that are projected for
// the statement's own use and never decoded into elements.
const Hidden = "~"

// Column is the logical identity of a projected column. Labels is empty for
// the unlabeled projection of a path's leaf.
type Column struct {
	Labels string
	Table  schema.SchemaTable
	Name   string
}

// LabelPrefix joins a label set into the prefix used by Column.Labels.
func LabelPrefix(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ".")
}

// Key renders the column identity, e.g. "a.public.V_Person.name".
func (c Column) Key() string {
	k := c.Table.String() + "." + c.Name
	if c.Labels != "" {
		k = c.Labels + "." + k
	}
	return k
}

// Labeled reports whether the column belongs to a labeled step.
func (c Column) Labeled() bool {
	return c.Labels != "" && c.Labels != Hidden
}

// IsHidden reports whether the column is a helper column.
func (c Column) IsHidden() bool {
	return c.Labels == Hidden
}

// LabelSet splits Labels back into its labels.
func (c Column) LabelSet() []string {
	if !c.Labeled() {
		return nil
	}
	return strings.Split(c.Labels, ".")
}

// Registry holds the alias assignments of one compilation or one result
// iterator. It is not safe for concurrent use.
type Registry struct {
	counter int
	byKey   map[string][]string
	byAlias map[string]Column
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byKey:   make(map[string][]string),
		byAlias: make(map[string]Column),
	}
}

// Register assigns a fresh alias to col. Registering the same identity again
// yields a new alias appended to that identity's list.
func (r *Registry) Register(col Column) string {
	r.counter++
	a := Prefix + strconv.Itoa(r.counter)
	k := col.Key()
	r.byKey[k] = append(r.byKey[k], a)
	r.byAlias[a] = col
	return a
}

// Aliases returns every alias of col in registration order.
func (r *Registry) Aliases(col Column) []string {
	return r.byKey[col.Key()]
}

// Last returns the most recent alias of col.
func (r *Registry) Last(col Column) (string, bool) {
	list := r.byKey[col.Key()]
	if len(list) == 0 {
		return "", false
	}
	return list[len(list)-1], true
}

// Column resolves an alias back to its logical column.
func (r *Registry) Column(a string) (Column, bool) {
	c, ok := r.byAlias[a]
	return c, ok
}

// Names returns every assigned alias in registration order.
func (r *Registry) Names() []string {
	out := make([]string, 0, r.counter)
	for i := 1; i <= r.counter; i++ {
		out = append(out, Prefix+strconv.Itoa(i))
	}
	return out
}

// Len is the number of aliases assigned since the last reset.
func (r *Registry) Len() int {
	return len(r.byAlias)
}

// Reset forgets every assignment and restarts numbering.
func (r *Registry) Reset() {
	r.counter = 0
	r.byKey = make(map[string][]string)
	r.byAlias = make(map[string]Column)
}
