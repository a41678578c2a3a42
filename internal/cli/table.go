package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/rodaine/table"
)

var boldStyle = lipgloss.NewStyle().Bold(true)

// newTable creates a table writing to w with the first column in bold
func newTable(w io.Writer, headers ...interface{}) table.Table {
	tbl := table.New(headers...)
	tbl.WithWriter(w)

	tbl.WithFirstColumnFormatter(func(format string, vals ...interface{}) string {
		return boldStyle.Render(fmt.Sprintf(format, vals...))
	})
	tbl.WithPadding(2)

	// ANSI codes do not count towards column width
	tbl.WithWidthFunc(lipgloss.Width)

	return tbl
}
