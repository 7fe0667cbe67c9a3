package parser

import (
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
)

// lineCollector accumulates inline text from flow formats into lines,
// remembering whether any non-blank piece of the line was bold.
type lineCollector struct {
	lines  []layout.Line
	buf    strings.Builder
	bold   bool
	prefix string
}

// setPrefix queues text to put in front of the next line, such as a list
// number that the source format keeps out of the text.
func (c *lineCollector) setPrefix(p string) {
	c.prefix = p
}

func (c *lineCollector) write(s string, bold bool) {
	if c.prefix != "" && strings.TrimSpace(s) != "" {
		c.buf.WriteString(c.prefix)
		c.prefix = ""
	}
	c.buf.WriteString(s)
	if bold && strings.TrimSpace(s) != "" {
		c.bold = true
	}
}

func (c *lineCollector) flush() {
	if t := strings.TrimSpace(c.buf.String()); t != "" {
		c.lines = append(c.lines, layout.Line{Text: t, Bold: c.bold})
	}
	c.buf.Reset()
	c.bold = false
}

func (c *lineCollector) page() layout.Page {
	c.flush()
	return layout.Page{Number: 1, Lines: c.lines}
}
