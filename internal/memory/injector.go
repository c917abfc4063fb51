package memory

import (
	"regexp"
	"slices"
	"strings"
)

var wordSplit = regexp.MustCompile(`[^a-z0-9]+`)

// RelevantFacts selects stored facts whose key shares a word with the
// user message and renders them as a context section. Returns the section
// text and the keys that were used, sorted for stable output. An empty
// section means nothing matched.
func RelevantFacts(facts map[string]string, message string) (string, []string) {
	if len(facts) == 0 {
		return "", nil
	}

	words := make(map[string]bool)
	for _, w := range wordSplit.Split(strings.ToLower(message), -1) {
		if w != "" {
			words[w] = true
		}
	}

	var used []string
	for key := range facts {
		for _, kw := range wordSplit.Split(key, -1) {
			if kw != "" && words[kw] {
				used = append(used, key)
				break
			}
		}
	}
	if len(used) == 0 {
		return "", nil
	}
	slices.Sort(used)

	var b strings.Builder
	b.WriteString("Known facts about this user:\n")
	for _, key := range used {
		b.WriteString("- ")
		b.WriteString(key)
		b.WriteString(": ")
		b.WriteString(facts[key])
		b.WriteString("\n")
	}
	return b.String(), used
}
