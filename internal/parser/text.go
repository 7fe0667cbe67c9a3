package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
)

// TextParser handles plain text files. Form feeds separate pages; plain text
// carries no typeface, so no line is bold.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := &layout.Document{
		Title: strings.TrimSuffix(filename, ".txt"),
	}

	page := layout.Page{Number: 1}
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), "\f")
		for i, part := range parts {
			if i > 0 {
				doc.Pages = appendPage(doc.Pages, page)
				page = layout.Page{Number: page.Number + 1}
			}
			if t := strings.TrimSpace(part); t != "" {
				page.Lines = append(page.Lines, layout.Line{Text: t})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	doc.Pages = appendPage(doc.Pages, page)

	return doc, nil
}

// appendPage drops pages that produced no lines.
func appendPage(pages []layout.Page, p layout.Page) []layout.Page {
	if len(p.Lines) == 0 && len(p.Tokens) == 0 {
		return pages
	}
	return append(pages, p)
}
