package quiz

import (
	"encoding/json"
	"io"
)

// ValidateQuestion checks an assembled question before it leaves the
// pipeline: it needs at least one option and a correct index inside them.
// Blank option texts are valid.
func ValidateQuestion(q *Question) bool {
	if q == nil || len(q.Options) == 0 {
		return false
	}
	return q.Correct >= 0 && q.Correct < len(q.Options)
}

// Filter keeps the questions that pass ValidateQuestion.
func Filter(qs []Question) []Question {
	out := make([]Question, 0, len(qs))
	for i := range qs {
		if ValidateQuestion(&qs[i]) {
			out = append(out, qs[i])
		}
	}
	return out
}

// WriteJSON writes questions as an indented JSON array. Non-ASCII text is
// written as-is and an empty set is written as [].
func WriteJSON(w io.Writer, qs []Question) error {
	if qs == nil {
		qs = []Question{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(qs)
}
