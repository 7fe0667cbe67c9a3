// Package convert runs the full quiz extraction pipeline for one document:
// decode, rebuild lines, split merged options, assemble questions.
package convert

import (
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/quizgest/internal/layout"
	"github.com/dgallion1/quizgest/internal/parser"
	"github.com/dgallion1/quizgest/internal/quiz"
	"github.com/dgallion1/quizgest/internal/stats"
)

// Converter holds the tunables shared by every conversion.
type Converter struct {
	Tolerance float64
	Parser    parser.Options
}

// New returns a Converter with default settings.
func New() *Converter {
	return &Converter{
		Tolerance: layout.DefaultTolerance,
		Parser:    parser.DefaultOptions(),
	}
}

// Result is the outcome of one conversion. Decode is only set by Convert.
type Result struct {
	Title     string
	Pages     int
	Lines     int
	Questions []quiz.Question

	Decode   time.Duration
	Assemble time.Duration
}

// Conversion returns the measurement recorded for this result.
func (r *Result) Conversion() stats.Conversion {
	return stats.Conversion{
		Decode:    r.Decode,
		Assemble:  r.Assemble,
		Pages:     r.Pages,
		Questions: len(r.Questions),
	}
}

// Convert decodes r according to the extension of filename and assembles the
// questions it contains. The only errors are decoder failures; malformed quiz
// content degrades to fewer or defaulted questions.
func (c *Converter) Convert(r io.Reader, filename string) (*Result, error) {
	p, err := parser.ForFile(filename, c.Parser)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	doc, err := p.Parse(r, filename)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}
	decode := time.Since(start)
	res := c.FromDocument(doc)
	res.Decode = decode
	return res, nil
}

// FromDocument runs the line and question stages on an already decoded
// document.
func (c *Converter) FromDocument(doc *layout.Document) *Result {
	start := time.Now()
	tolerance := c.Tolerance
	if tolerance <= 0 {
		tolerance = layout.DefaultTolerance
	}
	lines := layout.SplitAll(doc.Lines(tolerance))
	questions := quiz.Filter(quiz.Assemble(lines))
	return &Result{
		Title:     doc.Title,
		Pages:     len(doc.Pages),
		Lines:     len(lines),
		Questions: questions,
		Assemble:  time.Since(start),
	}
}
