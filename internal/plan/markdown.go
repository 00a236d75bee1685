package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlanFenceLanguages are the info strings of fenced blocks read as plans.
var PlanFenceLanguages = []string{"sqlgraph", "plan"}

// LoadMarkdown reads the plans embedded in a markdown notebook.
func LoadMarkdown(path string) ([]*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook %s: %w", path, err)
	}
	plans, err := ParseMarkdown(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, p := range plans {
		p.Source = fmt.Sprintf("%s#%d", path, i+1)
		if p.Name == "" {
			p.Name = fmt.Sprintf("%s-%d", base, i+1)
		}
	}
	return plans, nil
}

// ParseMarkdown extracts every ```sqlgraph fenced block of a markdown
// document as a plan. A plan without a name takes the slug of the closest
// heading above its block.
func ParseMarkdown(content []byte) ([]*Plan, error) {
	doc := goldmark.New().Parser().Parse(text.NewReader(content))

	var (
		plans   []*Plan
		heading string
		used    = make(map[string]int)
	)
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			heading = headingText(node, content)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			if !isPlanFence(string(node.Language(content))) {
				return ast.WalkSkipChildren, nil
			}
			var body strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				body.Write(seg.Value(content))
			}
			parsed, err := Parse([]byte(body.String()))
			if err != nil {
				return ast.WalkStop, err
			}
			for _, p := range parsed {
				if p.Name == "" && heading != "" {
					name := slug.Make(heading)
					used[name]++
					if used[name] > 1 {
						name = fmt.Sprintf("%s-%d", name, used[name])
					}
					p.Name = name
				}
				plans = append(plans, p)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, fmt.Errorf("%w: no plan blocks found", ErrInvalid)
	}
	return plans, nil
}

func isPlanFence(lang string) bool {
	for _, l := range PlanFenceLanguages {
		if strings.EqualFold(lang, l) {
			return true
		}
	}
	return false
}

func headingText(h *ast.Heading, content []byte) string {
	var b strings.Builder
	for child := h.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			b.Write(t.Segment.Value(content))
		}
	}
	return strings.TrimSpace(b.String())
}
