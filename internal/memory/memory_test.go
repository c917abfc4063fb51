package memory

import (
	"context"
	"strings"
	"testing"

	"github.com/flemzord/chatd/internal/provider"
)

func userMsg(content string) provider.LLMMessage {
	return provider.LLMMessage{Role: provider.MessageRoleUser, Content: content}
}

func TestWindowHistory_FIFOEviction(t *testing.T) {
	t.Parallel()

	h := NewWindowHistory(3)
	h.Append("c1", userMsg("one"), userMsg("two"))
	h.Append("c1", userMsg("three"), userMsg("four"))

	recent := h.Recent("c1")
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	if recent[0].Content != "two" || recent[2].Content != "four" {
		t.Errorf("window = %v", recent)
	}
	if h.Len("c1") != 3 {
		t.Errorf("Len = %d", h.Len("c1"))
	}
}

func TestWindowHistory_Isolation(t *testing.T) {
	t.Parallel()

	h := NewWindowHistory(5)
	h.Append("a", userMsg("for a"))
	h.Append("b", userMsg("for b"))

	if got := h.Recent("a"); len(got) != 1 || got[0].Content != "for a" {
		t.Errorf("conversation a = %v", got)
	}
	if h.Len("missing") != 0 {
		t.Error("unknown conversation should be empty")
	}
}

func TestWindowHistory_RecentReturnsCopy(t *testing.T) {
	t.Parallel()

	h := NewWindowHistory(5)
	h.Append("c", userMsg("original"))

	recent := h.Recent("c")
	recent[0].Content = "mutated"

	if h.Recent("c")[0].Content != "original" {
		t.Error("Recent should return a copy")
	}
}

func TestMemFactStore_LatestWins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewMemFactStore()

	if err := s.Append(ctx, "c1", "favorite color", "blue"); err != nil {
		t.Fatal(err)
	}
	if err := s.Append(ctx, "c1", "favorite color", "green"); err != nil {
		t.Fatal(err)
	}

	facts, err := s.Read(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if facts["favorite color"] != "green" {
		t.Errorf("facts = %v, want latest value", facts)
	}

	log, err := s.Log(ctx, "c1")
	if err != nil {
		t.Fatal(err)
	}
	if len(log) != 2 {
		t.Errorf("log length = %d, want 2 (append-only)", len(log))
	}
}

func TestExtractFacts(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		text  string
		key   string
		value string
	}{
		{"remember that", "remember that my office is building 7", "my office", "building 7"},
		{"remember my", "Remember my favorite color is blue.", "favorite color", "blue"},
		{"name", "my name is Sam", "name", "Sam"},
		{"name with period", "Hi, my name is Alex.", "name", "Alex"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			facts := ExtractFacts(tc.text)
			if len(facts) != 1 {
				t.Fatalf("ExtractFacts(%q) = %v, want one fact", tc.text, facts)
			}
			if facts[0].Key != tc.key || facts[0].Value != tc.value {
				t.Errorf("fact = %+v, want {%s %s}", facts[0], tc.key, tc.value)
			}
		})
	}
}

func TestExtractFacts_NoMatch(t *testing.T) {
	t.Parallel()

	for _, text := range []string{
		"what is the weather in Paris",
		"I like blue",
		"",
		"remember to buy milk",
	} {
		if facts := ExtractFacts(text); facts != nil {
			t.Errorf("ExtractFacts(%q) = %v, want nil", text, facts)
		}
	}
}

func TestRelevantFacts(t *testing.T) {
	t.Parallel()

	facts := map[string]string{
		"name":           "Sam",
		"favorite color": "blue",
		"major":          "physics",
	}

	section, used := RelevantFacts(facts, "what is my favorite color?")
	if len(used) != 1 || used[0] != "favorite color" {
		t.Fatalf("used = %v", used)
	}
	if !strings.Contains(section, "favorite color: blue") {
		t.Errorf("section = %q", section)
	}

	section, used = RelevantFacts(facts, "how does a compiler work?")
	if section != "" || used != nil {
		t.Errorf("expected no match, got section=%q used=%v", section, used)
	}
}

func TestRelevantFacts_StableOrder(t *testing.T) {
	t.Parallel()

	facts := map[string]string{
		"name":  "Sam",
		"major": "physics",
	}

	_, used := RelevantFacts(facts, "what is my name and my major?")
	if len(used) != 2 || used[0] != "major" || used[1] != "name" {
		t.Errorf("used = %v, want sorted keys", used)
	}
}
