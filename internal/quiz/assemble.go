package quiz

import (
	"strings"

	"github.com/dgallion1/quizgest/internal/layout"
)

// Unset marks a question whose correct option has not been seen yet.
const Unset = -1

// Question is one multiple-choice record.
type Question struct {
	ID      int      `json:"id"`
	Body    string   `json:"q"`
	Options []string `json:"opts"`
	Correct int      `json:"c"`
}

// State is the assembler's accumulator. The zero value has no open question.
type State struct {
	current *Question
}

// Open reports whether a question is being accumulated.
func (s State) Open() bool {
	return s.current != nil
}

// Step consumes one logical line and returns the next state together with a
// question closed by this line, if any. s is never modified: a line that
// extends the open question copies it first, so each such call costs time
// proportional to the options gathered so far. Assemble avoids that copy.
func Step(s State, line layout.Line) (State, *Question) {
	return step(s, line, true)
}

// step is Step with the copy optional. Callers passing copyOnWrite == false
// must not reuse s afterwards.
func step(s State, line layout.Line, copyOnWrite bool) (State, *Question) {
	text := Normalize(line.Text)
	if text == "" || IsPageNoise(text) {
		return s, nil
	}

	c := Classify(text)
	if c.Kind == KindHeader {
		closed := finalize(s.current)
		next := &Question{ID: c.ID, Body: c.Text, Correct: Unset}
		return State{current: next}, closed
	}
	if !s.Open() {
		return s, nil
	}

	q := s.current
	if copyOnWrite {
		q = q.clone()
	}
	switch n := len(q.Options); {
	case c.Kind == KindOption:
		q.Options = append(q.Options, c.Text)
		if line.Bold {
			q.Correct = n
		}
	case n > 0:
		q.Options[n-1] = joinSpace(q.Options[n-1], text)
	default:
		q.Body = joinSpace(q.Body, text)
	}
	return State{current: q}, nil
}

// Finish closes the open question at end of input.
func Finish(s State) *Question {
	return finalize(s.current)
}

// Assemble folds Step over lines and returns the finished questions in
// discovery order.
func Assemble(lines []layout.Line) []Question {
	var out []Question
	var s State
	for _, l := range lines {
		var closed *Question
		s, closed = step(s, l, false)
		if closed != nil {
			out = append(out, *closed)
		}
	}
	if last := Finish(s); last != nil {
		out = append(out, *last)
	}
	return out
}

// TrimBody cuts a question body after its last question mark, dropping layout
// debris that trails the question itself.
func TrimBody(body string) string {
	if i := strings.LastIndex(body, "?"); i >= 0 {
		return body[:i+1]
	}
	return body
}

// finalize returns the emitted form of q, or nil when q has no options.
func finalize(q *Question) *Question {
	if q == nil || len(q.Options) == 0 {
		return nil
	}
	out := q.clone()
	if out.Correct == Unset {
		out.Correct = 0
	}
	out.Body = TrimBody(out.Body)
	return out
}

func (q *Question) clone() *Question {
	c := *q
	c.Options = append([]string(nil), q.Options...)
	return &c
}

func joinSpace(a, b string) string {
	if a == "" {
		return b
	}
	return a + " " + b
}
