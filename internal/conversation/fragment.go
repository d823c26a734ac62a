package conversation

import (
	"strings"
	"unicode/utf8"
)

// Fragment is one deliverable chunk of a longer text. Sep holds the separator
// that followed Text in the original ("\n" at a line boundary, "" inside a
// hard-split line or at the end).
type Fragment struct {
	Text string
	Sep  string
}

// Split breaks text into fragments of at most maxSize runes, keeping whole
// lines together where possible. Lines longer than maxSize are cut into
// maxSize pieces that are never merged with neighbouring lines.
// Text that already fits is returned as a single fragment, even when empty.
func Split(text string, maxSize int) []Fragment {
	if maxSize <= 0 || utf8.RuneCountInString(text) <= maxSize {
		return []Fragment{{Text: text}}
	}
	s := splitter{max: maxSize}
	for i, line := range strings.Split(text, "\n") {
		s.add(i > 0, line)
	}
	s.finish()
	return s.out
}

// Join concatenates fragments with their separators, reproducing the input of Split.
func Join(frags []Fragment) string {
	var b strings.Builder
	for _, f := range frags {
		b.WriteString(f.Text)
		b.WriteString(f.Sep)
	}
	return b.String()
}

// Texts returns the fragment bodies in order.
func Texts(frags []Fragment) []string {
	out := make([]string, len(frags))
	for i, f := range frags {
		out[i] = f.Text
	}
	return out
}

type splitter struct {
	max    int
	out    []Fragment
	cur    strings.Builder
	curLen int
	open   bool
}

// add appends one line; newline reports whether a "\n" preceded it.
func (s *splitter) add(newline bool, line string) {
	n := utf8.RuneCountInString(line)
	if s.open && newline {
		if s.curLen+1+n <= s.max {
			s.cur.WriteByte('\n')
			s.cur.WriteString(line)
			s.curLen += 1 + n
			return
		}
		if s.curLen == 0 {
			// An open empty line cannot be emitted on its own; its newline
			// travels with the next line instead.
			s.open = false
			s.hardSplit("\n" + line)
			return
		}
		s.flush()
	}
	if newline {
		s.out[len(s.out)-1].Sep = "\n"
	}
	if n > s.max {
		s.hardSplit(line)
		return
	}
	s.cur.WriteString(line)
	s.curLen = n
	s.open = true
}

func (s *splitter) flush() {
	s.out = append(s.out, Fragment{Text: s.cur.String()})
	s.cur.Reset()
	s.curLen = 0
	s.open = false
}

func (s *splitter) hardSplit(line string) {
	runes := []rune(line)
	for start := 0; start < len(runes); start += s.max {
		end := min(start+s.max, len(runes))
		s.out = append(s.out, Fragment{Text: string(runes[start:end])})
	}
}

// finish flushes the open chunk. An open empty chunk is a trailing empty line
// whose newline is already recorded as the previous fragment's Sep.
func (s *splitter) finish() {
	if s.open && s.curLen > 0 {
		s.flush()
	}
}
