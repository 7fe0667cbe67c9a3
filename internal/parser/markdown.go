package parser

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark. Every source line of
// a paragraph or heading becomes one line; strong emphasis marks it bold.
type MarkdownParser struct{}

var listMarkerPattern = regexp.MustCompile(`^\s*(\d+[.)])\s*$`)

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	c := &lineCollector{}
	walkMarkdownBlocks(doc, src, c)

	return &layout.Document{
		Title: strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown"),
		Pages: appendPage(nil, c.page()),
	}, nil
}

func walkMarkdownBlocks(n ast.Node, src []byte, c *lineCollector) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.List:
			idx := 0
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				c.flush()
				if node.IsOrdered() {
					c.setPrefix(orderedItemMarker(item, src, node.Start+idx, node.Marker) + " ")
				}
				walkMarkdownBlocks(item, src, c)
				c.flush()
				idx++
			}
		case *ast.Paragraph, *ast.TextBlock, *ast.Heading:
			walkMarkdownInline(node, src, c, false)
			c.flush()
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				c.write(string(seg.Value(src)), false)
				c.flush()
			}
		case *ast.ThematicBreak, *ast.HTMLBlock:
		default:
			walkMarkdownBlocks(node, src, c)
		}
	}
}

func walkMarkdownInline(n ast.Node, src []byte, c *lineCollector, bold bool) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			c.write(string(node.Segment.Value(src)), bold)
			if node.SoftLineBreak() || node.HardLineBreak() {
				c.flush()
			}
		case *ast.String:
			c.write(string(node.Value), bold)
		case *ast.Emphasis:
			walkMarkdownInline(node, src, c, bold || node.Level >= 2)
		case *ast.AutoLink:
			c.write(string(node.Label(src)), bold)
		case *ast.RawHTML:
		default:
			walkMarkdownInline(node, src, c, bold)
		}
	}
}

// orderedItemMarker recovers the number the author wrote in front of a list
// item. CommonMark only keeps the first number of a list, so "12." followed
// by "15." would otherwise be renumbered.
func orderedItemMarker(item ast.Node, src []byte, fallback int, delim byte) string {
	if t := firstText(item); t != nil {
		start := t.Segment.Start
		lineStart := bytes.LastIndexByte(src[:start], '\n') + 1
		if m := listMarkerPattern.FindSubmatch(src[lineStart:start]); m != nil {
			return string(m[1])
		}
	}
	return fmt.Sprintf("%d%c", fallback, delim)
}

func firstText(n ast.Node) *ast.Text {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			return t
		}
		if t := firstText(child); t != nil {
			return t
		}
	}
	return nil
}
