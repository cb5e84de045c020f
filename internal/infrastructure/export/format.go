// Package export writes per-node report tables in the configured file formats.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ColumnKind is the value type of a table column.
type ColumnKind int

const (
	KindInt ColumnKind = iota
	KindFloat
	KindString
)

type Column struct {
	Name string
	Kind ColumnKind
}

// Table is an ordered header plus rows. A cell is int64, float64, string or nil (missing).
type Table struct {
	Columns []Column
	Rows    [][]any
}

// Format encodes a Table into one file type.
type Format interface {
	Name() string
	Extension() string
	ContentType() string
	Write(w io.Writer, table Table) error
}

var registry = make(map[string]Format)

// Register adds a format to the registry.
func Register(f Format) {
	registry[strings.ToLower(f.Name())] = f
}

// Get returns a format by name.
func Get(name string) (Format, bool) {
	f, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Names lists registered format names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve maps configured names to formats, dropping duplicates and keeping order.
func Resolve(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	seen := make(map[string]bool, len(names))

	for _, name := range names {
		f, ok := Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown export format: %s (supported: %s)", name, strings.Join(Names(), ", "))
		}
		if seen[f.Name()] {
			continue
		}
		seen[f.Name()] = true
		formats = append(formats, f)
	}

	if len(formats) == 0 {
		return nil, fmt.Errorf("at least one export format is required")
	}

	return formats, nil
}
