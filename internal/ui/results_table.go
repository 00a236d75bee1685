package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ColumnDef defines a column in a ResultsTable.
type ColumnDef struct {
	Name string
	// Weight is the column's share of the width left after fixed columns.
	// Zero makes the column fixed at MinWidth.
	Weight   float64
	MinWidth int
	MaxWidth int // 0 = no limit
	Right    bool
	// Wrap lets long cells span several lines; otherwise they are truncated.
	Wrap  bool
	Style lipgloss.Style
}

// ResultsTable renders materialized elements and schema listings.
type ResultsTable struct {
	display *DisplayContext
	columns []ColumnDef
	rows    [][]string
}

const (
	columnGap  = 2
	leftMargin = 2
)

var (
	ColNum = ColumnDef{Name: "#", MinWidth: 4, Right: true, Style: Muted}

	ColElement = ColumnDef{Name: "element", Weight: 1, MinWidth: 16, MaxWidth: 40, Style: Accent}

	// ColProperties wraps: property lists are the payload of a result.
	ColProperties = ColumnDef{Name: "properties", Weight: 2, MinWidth: 24, MaxWidth: 100, Wrap: true}

	ColLabels = ColumnDef{Name: "labels", Weight: 1, MinWidth: 10, MaxWidth: 50, Style: Muted}

	ColTable = ColumnDef{Name: "table", Weight: 1, MinWidth: 16, MaxWidth: 50, Style: Accent}

	ColColumns = ColumnDef{Name: "columns", Weight: 2, MinWidth: 24, MaxWidth: 120, Wrap: true, Style: Muted}
)

var (
	// ResultLayout is [num, element, properties, labels].
	ResultLayout = []ColumnDef{ColNum, ColElement, ColProperties, ColLabels}

	// SchemaLayout is [table, columns].
	SchemaLayout = []ColumnDef{ColTable, ColColumns}
)

// NewResultsTable creates a table with the given column layout.
func NewResultsTable(display *DisplayContext, columns []ColumnDef) *ResultsTable {
	return &ResultsTable{display: display, columns: columns}
}

// AddRow adds a row. Missing cells render empty; extra cells are dropped.
func (t *ResultsTable) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len returns the number of rows.
func (t *ResultsTable) Len() int { return len(t.rows) }

// calculateWidths splits the terminal width across weighted columns after
// fixed columns and gaps, clamping each to its bounds.
func (t *ResultsTable) calculateWidths() []int {
	widths := make([]int, len(t.columns))
	available := t.display.TermWidth - leftMargin - columnGap*(len(t.columns)-1)
	var weights float64
	for i, col := range t.columns {
		if col.Weight == 0 {
			widths[i] = clamp(col.MinWidth, col)
			available -= widths[i]
			continue
		}
		weights += col.Weight
	}
	if available < 0 {
		available = 0
	}
	for i, col := range t.columns {
		if col.Weight > 0 {
			widths[i] = clamp(int(float64(available)*col.Weight/weights), col)
		}
	}
	return widths
}

func clamp(w int, col ColumnDef) int {
	if w < col.MinWidth {
		w = col.MinWidth
	}
	if col.MaxWidth > 0 && w > col.MaxWidth {
		w = col.MaxWidth
	}
	return w
}

// Render returns the table, or "" when it has no rows.
func (t *ResultsTable) Render() string {
	if len(t.rows) == 0 {
		return ""
	}

	widths := t.calculateWidths()
	headers := make([]string, len(t.columns))
	for i, col := range t.columns {
		headers[i] = col.Name
	}
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		rows[r] = make([]string, len(row))
		for c, cell := range row {
			if !t.columns[c].Wrap {
				limit := widths[c]
				if c < len(t.columns)-1 {
					limit -= columnGap
				}
				cell = TruncateWithEllipsis(cell, limit)
			}
			rows[r][c] = cell
		}
	}

	return table.New().
		Border(lipgloss.Border{Top: "─", Bottom: "─", Middle: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderRow(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(Muted).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			def := t.columns[col]
			style := def.Style
			if row == table.HeaderRow {
				style = Muted
			}
			style = style.Width(widths[col]).Align(lipgloss.Left)
			if def.Right {
				style = style.Align(lipgloss.Right)
			}
			if col < len(t.columns)-1 {
				style = style.PaddingRight(columnGap)
			}
			return style
		}).
		Rows(rows...).
		Render()
}

// TruncateWithEllipsis shortens s to maxLen bytes, ending in "..." and
// preferring to cut at a space in the second half.
func TruncateWithEllipsis(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}

	cut := s[:maxLen-3]
	if i := strings.LastIndex(cut, " "); i > maxLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}

// FormatRowNum right-aligns num to the width of maxNum (at least 2).
func FormatRowNum(num, maxNum int) string {
	width := max(len(strconv.Itoa(maxNum)), 2)
	s := strconv.Itoa(num)
	return strings.Repeat(" ", max(width-len(s), 0)) + s
}
