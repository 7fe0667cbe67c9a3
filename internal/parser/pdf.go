package parser

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
	pdflib "github.com/ledongthuc/pdf"
)

// DefaultCropInset trims running headers and footers without reaching body
// text.
const DefaultCropInset = 10.0

// Glyphs further apart than this, horizontally or vertically, start a new
// token.
const glyphTolerance = 3.0

// PDFParser decodes PDF files into positioned tokens. It tries the Go library
// first and, when enabled, falls back to pdftotext. The fallback has no font
// information, so its lines are never bold.
type PDFParser struct {
	CropInset         float64
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*layout.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	doc := &layout.Document{
		Title: strings.TrimSuffix(filename, ".pdf"),
	}

	pages, err := p.extractPages(data)
	if err != nil && p.FallbackPdftotext {
		pages, err = extractPdftotext(data)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	doc.Pages = pages
	return doc, nil
}

func (p *PDFParser) extractPages(data []byte) ([]layout.Page, error) {
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	inset := p.CropInset
	if inset < 0 {
		inset = 0
	}

	var pages []layout.Page
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		width, height := mediaBox(page.V)
		texts, err := pageText(page)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, layout.Page{
			Number: i,
			Width:  width,
			Height: height,
			Tokens: glyphsToTokens(texts, height, inset),
		})
	}
	return pages, nil
}

// pageText reads the glyph stream of one page. The library panics on some
// malformed content streams, so the panic is turned into an error.
func pageText(page pdflib.Page) (texts []pdflib.Text, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()
	return page.Content().Text, nil
}

// mediaBox returns the page size, following inherited attributes up the page
// tree. Letter size is assumed when no box is present.
func mediaBox(v pdflib.Value) (width, height float64) {
	for depth := 0; v.Kind() == pdflib.Dict && depth < 32; depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdflib.Array && box.Len() == 4 {
			x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
			x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
			return math.Abs(x1 - x0), math.Abs(y1 - y0)
		}
		v = v.Key("Parent")
	}
	return 612, 792
}

type tokenBuilder struct {
	text   strings.Builder
	font   string
	top    float64
	left   float64
	y      float64
	right  float64
	active bool
}

// glyphsToTokens groups consecutive glyphs into tokens. A token ends when the
// font changes, the baseline moves, or a horizontal gap opens up. Blanks stay
// inside tokens. Glyphs entirely outside the band between the top and bottom
// insets are dropped.
func glyphsToTokens(texts []pdflib.Text, height, inset float64) []layout.Token {
	var tokens []layout.Token
	var b tokenBuilder

	flush := func() {
		if b.active && strings.TrimSpace(b.text.String()) != "" {
			tokens = append(tokens, layout.Token{
				Text:     b.text.String(),
				Top:      b.top,
				Left:     b.left,
				FontName: b.font,
				Bold:     layout.IsBoldFont(b.font),
			})
		}
		b.text.Reset()
		b.active = false
	}

	for _, t := range texts {
		if t.S == "" {
			continue
		}
		bottom := height - t.Y
		top := bottom - t.FontSize
		if bottom <= inset || top >= height-inset {
			continue
		}

		if b.active {
			sameFont := t.Font == b.font
			sameBaseline := math.Abs(t.Y-b.y) <= glyphTolerance
			adjacent := t.X-b.right <= glyphTolerance && t.X >= b.left-glyphTolerance
			if !sameFont || !sameBaseline || !adjacent {
				flush()
			}
		}
		if !b.active {
			b.active = true
			b.font = t.Font
			b.top = top
			b.left = t.X
			b.y = t.Y
		}
		b.text.WriteString(t.S)
		b.right = t.X + t.W
	}
	flush()

	return tokens
}

// extractPdftotext shells out to poppler's pdftotext. One page per form feed,
// one line per output line.
func extractPdftotext(data []byte) ([]layout.Page, error) {
	tmp, err := os.CreateTemp("", "quizgest-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	cmd := exec.Command("pdftotext", "-layout", tmpPath, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitTextPages(string(out)), nil
}

func splitTextPages(text string) []layout.Page {
	var pages []layout.Page
	for i, chunk := range strings.Split(text, "\f") {
		page := layout.Page{Number: i + 1}
		for _, l := range strings.Split(chunk, "\n") {
			if strings.TrimSpace(l) != "" {
				page.Lines = append(page.Lines, layout.Line{Text: strings.TrimSpace(l)})
			}
		}
		if len(page.Lines) > 0 {
			pages = append(pages, page)
		}
	}
	return pages
}
