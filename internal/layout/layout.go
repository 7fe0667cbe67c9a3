package layout

import (
	"math"
	"sort"
	"strings"
)

// DefaultTolerance is the vertical gap, in PDF points, above which two tokens
// are considered to sit on different lines.
const DefaultTolerance = 5.0

// Token is a positioned span of text from a single page.
type Token struct {
	Text     string
	Top      float64 // Distance from the top edge of the page.
	Left     float64
	FontName string
	Bold     bool
}

// Line is a row of text with its bold marking. Physical lines come from the
// reconstructor, logical lines from SplitMergedOptions.
type Line struct {
	Text string
	Bold bool
}

// Page is one decoded page. Positional formats fill Tokens; flow formats
// (DOCX, Markdown, HTML, text) fill Lines directly.
type Page struct {
	Number int
	Width  float64
	Height float64
	Tokens []Token
	Lines  []Line
}

// Document is the decoder output for one source file.
type Document struct {
	Title string
	Pages []Page
}

// Lines returns the physical lines of every page in page order.
func (d *Document) Lines(tolerance float64) []Line {
	return Reconstruct(d.Pages, tolerance)
}

var boldMarkers = []string{"bold", "bld", "black", "heavy"}

// IsBoldFont reports whether a font name looks like a bold face.
func IsBoldFont(fontName string) bool {
	if fontName == "" {
		return false
	}
	name := strings.ToLower(fontName)
	for _, m := range boldMarkers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// Reconstruct turns every page into lines and concatenates them in page
// order. Pages without tokens contribute their prebuilt lines.
func Reconstruct(pages []Page, tolerance float64) []Line {
	var out []Line
	for _, p := range pages {
		if len(p.Tokens) == 0 {
			for _, l := range p.Lines {
				if strings.TrimSpace(l.Text) != "" {
					out = append(out, l)
				}
			}
			continue
		}
		out = append(out, ReconstructPage(p.Tokens, tolerance)...)
	}
	return out
}

// ReconstructPage groups one page's tokens into lines. Tokens are read top to
// bottom, left to right; a token starts a new line when its Top differs from
// the first token of the current line by more than tolerance.
func ReconstructPage(tokens []Token, tolerance float64) []Line {
	if len(tokens) == 0 {
		return nil
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}

	sorted := make([]Token, len(tokens))
	copy(sorted, tokens)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := math.Floor(sorted[i].Top), math.Floor(sorted[j].Top)
		if ti != tj {
			return ti < tj
		}
		return sorted[i].Left < sorted[j].Left
	})

	var lines []Line
	var buf []string
	bold := false
	flush := func() {
		text := strings.Join(buf, " ")
		if strings.TrimSpace(text) != "" {
			lines = append(lines, Line{Text: text, Bold: bold})
		}
		buf = buf[:0]
		bold = false
	}

	// Tokens are compared against the first token of the current line.
	lastTop := sorted[0].Top
	for _, t := range sorted {
		if math.Abs(t.Top-lastTop) > tolerance {
			flush()
			lastTop = t.Top
		}
		buf = append(buf, t.Text)
		if t.Bold {
			bold = true
		}
	}
	flush()

	return lines
}
