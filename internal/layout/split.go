package layout

import (
	"regexp"
	"strings"
)

// MarkerClass is the character class of option marker letters: Latin A-E and
// the Cyrillic А-Е range, in both cases.
const MarkerClass = `[A-Ea-eА-Еа-е]`

// embeddedMarker finds a marker letter and its delimiter preceded by
// whitespace.
var embeddedMarker = regexp.MustCompile(`\s(` + MarkerClass + `)[.)]`)

// SplitMergedOptions splits a line that carries several option markers, as in
// "B. Diaphysis C. Epiphysis", into one line per marker. Every fragment keeps
// the Bold flag of the original line; empty fragments are dropped.
func SplitMergedOptions(line Line) []Line {
	text := line.Text
	var cuts []int
	for _, m := range embeddedMarker.FindAllStringSubmatchIndex(text, -1) {
		cuts = append(cuts, m[2])
	}
	if len(cuts) == 0 {
		return []Line{line}
	}

	out := make([]Line, 0, len(cuts)+1)
	start := 0
	for _, c := range append(cuts, len(text)) {
		frag := strings.TrimSpace(text[start:c])
		if frag != "" {
			out = append(out, Line{Text: frag, Bold: line.Bold})
		}
		start = c
	}
	return out
}

// SplitAll applies SplitMergedOptions to every line, preserving order.
func SplitAll(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, SplitMergedOptions(l)...)
	}
	return out
}
