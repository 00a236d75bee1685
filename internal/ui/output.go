package ui

import "fmt"

// Status marks. Status lines stay uncolored; the mark carries the meaning.
const (
	SymbolSuccess = "✓"
	SymbolWarning = "⚠"
)

func mark(symbol, format string, args []interface{}) string {
	return symbol + " " + fmt.Sprintf(format, args...)
}

// Successf formats a line prefixed with a check mark.
func Successf(format string, args ...interface{}) string {
	return mark(SymbolSuccess, format, args)
}

// Warningf formats a line prefixed with a warning sign.
func Warningf(format string, args ...interface{}) string {
	return mark(SymbolWarning, format, args)
}

// Header renders a plan or section name.
func Header(s string) string { return Bold.Render(s) }

// TableName renders a schema table or file path.
func TableName(s string) string { return Accent.Render(s) }

// Hint renders secondary text.
func Hint(s string) string { return Muted.Render(s) }

// Count renders "(n noun)", choosing the plural form unless n is 1.
func Count(n int, singular, plural string) string {
	noun := plural
	if n == 1 {
		noun = singular
	}
	return Muted.Render(fmt.Sprintf("(%d %s)", n, noun))
}
