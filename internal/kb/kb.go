// Package kb loads a markdown knowledge base and serves section lookups.
// The file is split on "##" headings; each section's first line is its
// title and the rest is its body. The loaded copy is held in memory and
// can be reloaded at runtime without interrupting readers.
package kb

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
)

var (
	gradingQuery     = regexp.MustCompile(`\b(grades?|grading|percent|percentage|rubric|points|weight|weights)\b`)
	officeHoursQuery = regexp.MustCompile(`\b(office hours|office)\b|\bhours\b`)
)

// Section is one "##" block of the knowledge base.
type Section struct {
	Title string
	Body  string
}

// KB holds the parsed knowledge base. Safe for concurrent use.
type KB struct {
	mu       sync.RWMutex
	path     string
	sections []Section
}

// Load reads and parses the knowledge base at path.
func Load(path string) (*KB, error) {
	k := &KB{path: path}
	if err := k.Reload(); err != nil {
		return nil, err
	}
	return k, nil
}

// Reload re-reads the file and atomically swaps in the new sections.
// On error the previous contents are kept.
func (k *KB) Reload() error {
	data, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("kb: read %s: %w", k.path, err)
	}

	sections := parse(string(data))

	k.mu.Lock()
	k.sections = sections
	k.mu.Unlock()
	return nil
}

// Path returns the knowledge base file path.
func (k *KB) Path() string {
	return k.path
}

// Sections returns a copy of the loaded sections.
func (k *KB) Sections() []Section {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]Section, len(k.sections))
	copy(out, k.sections)
	return out
}

// Search returns the sections whose title or body contains the normalized
// query. Common phrasings collapse to canonical queries: grade-related
// wording becomes "grading", office-hour wording becomes "office hours".
// An empty result means no section matched.
func (k *KB) Search(query string) []Section {
	q := Normalize(query)

	k.mu.RLock()
	defer k.mu.RUnlock()

	var hits []Section
	for _, s := range k.sections {
		blob := strings.ToLower(s.Title + "\n" + s.Body)
		if strings.Contains(blob, q) {
			hits = append(hits, s)
		}
	}
	return hits
}

// Normalize lowercases the query and collapses common phrasings onto
// the canonical section keywords.
func Normalize(query string) string {
	q := strings.TrimSpace(strings.ToLower(query))
	switch {
	case gradingQuery.MatchString(q):
		return "grading"
	case officeHoursQuery.MatchString(q):
		return "office hours"
	}
	return q
}

// parse splits markdown text on "##" headings into titled sections.
// Text before the first heading is ignored.
func parse(text string) []Section {
	parts := strings.Split(text, "##")
	var sections []Section
	for _, part := range parts[1:] {
		var lines []string
		for _, ln := range strings.Split(strings.TrimSpace(part), "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				lines = append(lines, ln)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sections = append(sections, Section{
			Title: lines[0],
			Body:  strings.Join(lines[1:], "\n"),
		})
	}
	return sections
}
