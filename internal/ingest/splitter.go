package ingest

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators are tried in order, coarsest first. The empty
// separator splits into single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter cuts text into chunks of at most ChunkSize characters, splitting
// on the coarsest separator that works and carrying up to Overlap
// characters of the previous chunk into the next.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter() *Splitter {
	return &Splitter{ChunkSize: DefaultChunkSize, Overlap: DefaultChunkOverlap, Separators: DefaultSeparators}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return s.split(text, s.Separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, c := range separators {
		if c == "" || strings.Contains(text, c) {
			sep, rest = c, separators[i+1:]
			break
		}
	}

	var pieces []string
	if sep == "" {
		for _, r := range text {
			pieces = append(pieces, string(r))
		}
	} else {
		pieces = strings.Split(text, sep)
	}

	var out, small []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if size(p) < s.ChunkSize {
			small = append(small, p)
			continue
		}
		if len(small) > 0 {
			out = append(out, s.merge(small, sep)...)
			small = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(small) > 0 {
		out = append(out, s.merge(small, sep)...)
	}
	return out
}

// merge packs pieces into chunks, keeping a tail of at most Overlap
// characters from one chunk at the head of the next.
func (s *Splitter) merge(pieces []string, sep string) []string {
	sepLen := size(sep)
	var chunks, window []string
	total := 0

	joinedLen := func(extra int) int {
		if len(window) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, p := range pieces {
		n := size(p)
		if joinedLen(n) > s.ChunkSize && len(window) > 0 {
			if c := strings.TrimSpace(strings.Join(window, sep)); c != "" {
				chunks = append(chunks, c)
			}
			for total > s.Overlap || (total > 0 && joinedLen(n) > s.ChunkSize) {
				total -= size(window[0])
				if len(window) > 1 {
					total -= sepLen
				}
				window = window[1:]
			}
		}
		total = joinedLen(n)
		window = append(window, p)
	}
	if c := strings.TrimSpace(strings.Join(window, sep)); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

func size(s string) int { return utf8.RuneCountInString(s) }
