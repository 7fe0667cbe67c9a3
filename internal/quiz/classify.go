package quiz

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/quizgest/internal/layout"
	"golang.org/x/text/unicode/norm"
)

// Kind tags the result of Classify.
type Kind int

const (
	KindNone Kind = iota
	KindOption
	KindHeader
)

func (k Kind) String() string {
	switch k {
	case KindOption:
		return "option"
	case KindHeader:
		return "header"
	}
	return "none"
}

// Classification is the tagged result of matching a normalized line.
type Classification struct {
	Kind Kind
	ID   int    // Header only.
	Text string // Option text or header body.
}

var (
	optionPattern = regexp.MustCompile(`^\s*(` + layout.MarkerClass + `)[.)]\s*(.*)$`)
	headerPattern = regexp.MustCompile(`^\s*(\d+)\.\s*(.*)$`)
	spaceRun      = regexp.MustCompile(`\s+`)
)

// Normalize collapses whitespace runs, trims, and composes the text to NFC.
func Normalize(text string) string {
	return norm.NFC.String(strings.TrimSpace(spaceRun.ReplaceAllString(text, " ")))
}

// IsPageNoise reports whether a normalized line is a bare page number.
func IsPageNoise(text string) bool {
	if text == "" || utf8.RuneCountInString(text) >= 4 {
		return false
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// matchOption recognizes "A. text" and "b) text".
func matchOption(text string) (string, bool) {
	m := optionPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	opt := strings.TrimSpace(m[2])
	if opt == "" {
		// A marker with no trailing text: keep whatever follows the first
		// two characters of the line.
		if r := []rune(text); len(r) > 2 {
			opt = strings.TrimSpace(string(r[2:]))
		}
	}
	return opt, true
}

// matchHeader recognizes "12. question text".
func matchHeader(text string) (int, string, bool) {
	m := headerPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, "", false
	}
	return id, strings.TrimSpace(m[2]), true
}

// Classify matches a normalized line against the option pattern, then the
// header pattern. Whether an option is accepted depends on assembler state,
// so an option-shaped line is always reported as KindOption.
func Classify(text string) Classification {
	if opt, ok := matchOption(text); ok {
		return Classification{Kind: KindOption, Text: opt}
	}
	if id, body, ok := matchHeader(text); ok {
		return Classification{Kind: KindHeader, ID: id, Text: body}
	}
	return Classification{Kind: KindNone, Text: text}
}
