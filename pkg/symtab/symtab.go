// Package symtab implements the flat name-to-integer store used by both the
// tree-walking interpreter and the stack machine.
package symtab

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/thomasrohde/perp/pkg/diagnostics"
)

// Table maps variable names to their last assigned value.
// A Table is not safe for concurrent use; each run owns its own.
type Table struct {
	bindings map[string]int64
}

// New creates an empty table.
func New() *Table {
	return &Table{bindings: make(map[string]int64)}
}

// Get returns the value bound to name. Looking up an unbound name is an
// error, never a default zero.
func (t *Table) Get(name string) (int64, error) {
	val, ok := t.bindings[name]
	if !ok {
		return 0, diagnostics.Report(diagnostics.EUnbound, "variable has no value", name)
	}
	return val, nil
}

// Put binds name to val, overwriting any previous value.
func (t *Table) Put(name string, val int64) {
	t.bindings[name] = val
}

// Has checks whether name is bound.
func (t *Table) Has(name string) bool {
	_, ok := t.bindings[name]
	return ok
}

// Len returns the number of bound names.
func (t *Table) Len() int {
	return len(t.bindings)
}

// Names returns the bound names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.bindings))
	for name := range t.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the bindings.
func (t *Table) Snapshot() map[string]int64 {
	out := make(map[string]int64, len(t.bindings))
	for k, v := range t.bindings {
		out[k] = v
	}
	return out
}

// Equal reports whether both tables hold the same bindings.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	for k, v := range t.bindings {
		ov, ok := other.bindings[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Dump writes every binding to w, sorted by name.
func (t *Table) Dump(w io.Writer) {
	fmt.Fprintln(w, "Symbol table:")
	if t.Len() == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"Name", "Value"})
	tw.SetAutoFormatHeaders(false)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, name := range t.Names() {
		tw.Append([]string{name, strconv.FormatInt(t.bindings[name], 10)})
	}
	tw.Render()
}
