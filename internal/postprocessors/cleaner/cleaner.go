// Package cleaner removes boilerplate phrases from extracted text.
package cleaner

import "strings"

// DefaultPhrases is the publisher boilerplate stripped from every document.
var DefaultPhrases = []string{
	"www.crcpress.com",
	"an informa business",
}

// Default is the cleaner used by the ingestion pipeline.
var Default = New(DefaultPhrases...)

// Cleaner strips a fixed denylist of phrases.
// Matching is exact and case-sensitive.
type Cleaner struct {
	phrases []string
}

// New creates a cleaner for the given phrases. Empty phrases are ignored.
func New(phrases ...string) *Cleaner {
	c := &Cleaner{phrases: make([]string, 0, len(phrases))}
	for _, p := range phrases {
		if p != "" {
			c.phrases = append(c.phrases, p)
		}
	}
	return c
}

// Phrases returns the denylist.
func (c *Cleaner) Phrases() []string {
	out := make([]string, len(c.phrases))
	copy(out, c.phrases)
	return out
}

// Clean removes every occurrence of each phrase and trims surrounding whitespace.
// Removal repeats until no phrase remains, so text that re-forms a phrase after
// a removal is also stripped and Clean(Clean(x)) == Clean(x).
func (c *Cleaner) Clean(text string) string {
	for {
		changed := false
		for _, p := range c.phrases {
			if strings.Contains(text, p) {
				text = strings.ReplaceAll(text, p, "")
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	return strings.TrimSpace(text)
}

// Clean applies the default denylist.
func Clean(text string) string {
	return Default.Clean(text)
}

// Name returns the processor name.
func (c *Cleaner) Name() string {
	return "cleaner"
}

// Process cleans text as a pipeline stage.
func (c *Cleaner) Process(text string) string {
	return c.Clean(text)
}
