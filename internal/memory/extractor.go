package memory

import (
	"regexp"
	"strings"
)

// Extraction patterns, tried in order. Keys are lowercased; values keep
// the user's casing.
var extractPatterns = []struct {
	re  *regexp.Regexp
	key string // fixed key; "" means the first capture group is the key
}{
	{re: regexp.MustCompile(`(?i)\bremember that\s+(.+?)\s+is\s+(.+?)[.!]?\s*$`)},
	{re: regexp.MustCompile(`(?i)\bremember\s+my\s+(.+?)\s+is\s+(.+?)[.!]?\s*$`)},
	{re: regexp.MustCompile(`(?i)\bmy name is\s+(.+?)[.!]?\s*$`), key: "name"},
}

// Fact is a key/value pair extracted from a user message.
type Fact struct {
	Key   string
	Value string
}

// ExtractFacts finds explicit memory statements in a user message.
// Only deliberate phrasings are matched; casual mentions are not
// persisted. Returns nil when the message contains no such statement.
func ExtractFacts(text string) []Fact {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	for _, p := range extractPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var key, value string
		if p.key != "" {
			key, value = p.key, m[1]
		} else {
			key, value = m[1], m[2]
		}

		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			return nil
		}
		return []Fact{{Key: key, Value: value}}
	}
	return nil
}
