// Package tui provides terminal output components for GLEANER.
package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// TableColumn defines a column in a table.
type TableColumn struct {
	Name  string
	Width int
}

// Table provides styled fixed-width table rendering.
// Cell widths are computed with runewidth so wide characters line up.
type Table struct {
	w       io.Writer
	styles  *TableStyles
	columns []TableColumn
}

// NewTable creates a new table with the given columns.
func NewTable(w io.Writer, columns []TableColumn) *Table {
	return &Table{
		w:       w,
		styles:  NewTableStyles(),
		columns: columns,
	}
}

// WriteHeader writes the table header row.
func (t *Table) WriteHeader() {
	cells := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		cells = append(cells, pad(col.Name, col.Width))
	}
	_, _ = fmt.Fprintln(t.w, t.styles.Header.Render(strings.Join(cells, "  ")))
}

// WriteRow writes a data row to the table.
// The last cell may carry ANSI styling and is written unpadded.
func (t *Table) WriteRow(values ...string) {
	cells := make([]string, 0, len(t.columns))
	for i, col := range t.columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		if i == len(t.columns)-1 {
			cells = append(cells, value)
			continue
		}
		cells = append(cells, pad(value, col.Width))
	}
	_, _ = fmt.Fprintln(t.w, strings.Join(cells, "  "))
}

// pad truncates the value to the column width and fills to it.
func pad(value string, width int) string {
	if width <= 1 {
		return value
	}
	if runewidth.StringWidth(value) > width {
		value = runewidth.Truncate(value, width, "…")
	}
	return runewidth.FillRight(value, width)
}
