// Package segment groups timestamped words into sentences.
package segment

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// terminalPattern matches a word that closes a sentence: one or more of . ! ? …
// optionally followed by closing quotes or brackets.
var terminalPattern = regexp.MustCompile(`[.!?…]+["'”’)\]]*$`)

// Word is a transcribed word with its span in seconds.
type Word struct {
	Text  string  `json:"text" mapstructure:"text"`
	Start float64 `json:"start" mapstructure:"start"`
	End   float64 `json:"end" mapstructure:"end"`
}

// Sentence is a segmented span. IDs are 1-based output positions.
type Sentence struct {
	ID    int
	Text  string
	Start float64
	End   float64
}

// isTerminal reports whether text ends a sentence.
func isTerminal(text string) bool {
	return terminalPattern.MatchString(text)
}

// Segment groups words into sentences. A sentence closes on a word ending in
// terminal punctuation and spans the first buffered word's start to that
// word's end. Words left over at the end form one trailing sentence ending
// at the last word's end, so no word is dropped. Blank words are ignored.
func Segment(words []Word) []Sentence {
	var (
		out   []Sentence
		buf   []string
		start float64
		last  float64
	)
	emit := func(end float64) {
		out = append(out, Sentence{
			ID:    len(out) + 1,
			Text:  strings.Join(buf, " "),
			Start: start,
			End:   end,
		})
		buf = buf[:0]
	}

	for _, w := range words {
		text := Canonical(w.Text)
		if text == "" {
			continue
		}
		if len(buf) == 0 {
			start = w.Start
		}
		buf = append(buf, text)
		last = w.End
		if isTerminal(text) {
			emit(w.End)
		}
	}
	if len(buf) > 0 {
		emit(last)
	}
	return out
}

// Canonical trims and NFC-normalizes a transcribed word.
func Canonical(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
