package ui

import (
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
)

// MarkdownRenderMargin indents rendered explain reports.
const MarkdownRenderMargin = 2

const defaultCodeTheme = "monokai"

var markdownCodeTheme = defaultCodeTheme

// ConfigureMarkdownCodeTheme picks the chroma style used to highlight SQL in
// explain reports. Names not in the chroma registry select monokai.
func ConfigureMarkdownCodeTheme(theme string) {
	name := strings.ToLower(strings.TrimSpace(theme))
	if styles.Registry[name] == nil {
		name = defaultCodeTheme
	}
	markdownCodeTheme = name
}

// RenderMarkdown renders an explain report for a terminal width columns wide.
// The result ends in exactly one newline.
func RenderMarkdown(content string, width int) (string, error) {
	if width <= 0 {
		width = DefaultTermWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(markdownStyle()),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	out, err := r.Render(content)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n") + "\n", nil
}

func ptr[T any](v T) *T { return &v }

func markdownStyle() ansi.StyleConfig {
	muted := ptr("8")
	var accent *string
	if c, ok := AccentColor(); ok {
		accent = ptr(c)
	}
	margin := ptr(uint(MarkdownRenderMargin))

	heading := func(prefix string, underline bool) ansi.StyleBlock {
		p := ansi.StylePrimitive{Prefix: prefix}
		if underline {
			p.Underline = ptr(true)
		}
		return ansi.StyleBlock{StylePrimitive: p}
	}

	cfg := ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{BlockPrefix: "\n", BlockSuffix: "\n"},
			Margin:         margin,
		},
		Heading: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{
			BlockSuffix: "\n",
			Color:       accent,
			Bold:        ptr(true),
		}},
		H1: heading("# ", true),
		H2: heading("## ", true),
		H3: heading("### ", false),

		// warnings are rendered as block quotes
		BlockQuote: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{Color: muted},
			Indent:         ptr(uint(1)),
			IndentToken:    ptr("│ "),
		},
		List:        ansi.StyleList{LevelIndent: 2},
		Item:        ansi.StylePrimitive{BlockPrefix: "• "},
		Enumeration: ansi.StylePrimitive{BlockPrefix: ". "},
		Emph:        ansi.StylePrimitive{Italic: ptr(true)},
		Strong:      ansi.StylePrimitive{Bold: ptr(true)},
		HorizontalRule: ansi.StylePrimitive{
			Color:  muted,
			Format: "\n--------\n",
		},

		// inline code is aliases and column names
		Code: ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{
			Prefix: "`",
			Suffix: "`",
			Color:  accent,
		}},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{Color: ptr("252")},
				Margin:         margin,
			},
			Theme: markdownCodeTheme,
		},
		Table: ansi.StyleTable{
			CenterSeparator: ptr("│"),
			ColumnSeparator: ptr("│"),
			RowSeparator:    ptr("─"),
		},
	}
	return cfg
}
