// Package safety classifies inbound user messages before any model or tool
// work happens. Classification is regex based and deterministic. A refused
// message short-circuits the request with a canned response and never
// reaches the completion backend; a redirected message continues but must
// verify its answer through a tool.
package safety

import "regexp"

// Action is what the caller must do with a classified message.
type Action int

// Actions, in order of severity.
const (
	ActionAllow Action = iota
	ActionRefuse
	ActionRedirect
)

// Category identifies why a message was flagged.
type Category string

// Categories, in precedence order. When a message matches several,
// the highest-precedence category wins.
const (
	CategoryNone              Category = ""
	CategorySelfHarm          Category = "self_harm"
	CategoryWeapons           Category = "weapons"
	CategorySecrets           Category = "secrets"
	CategoryGuessWithoutTools Category = "guess_without_tools"
)

var (
	weaponsPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bhow to (make|build)\b.*\b(bomb|explosive)\b`),
	}
	selfHarmPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(suicide|kill myself|self-harm|end my life)\b`),
	}
	secretPattern = regexp.MustCompile(`sk-[A-Za-z0-9_\-]{20,}`)
	guessPattern  = regexp.MustCompile(`(?i)\b(without tools|no tools|guess)\b`)
)

// Verdict is the result of classifying a message.
type Verdict struct {
	Action   Action
	Category Category
}

// Refused reports whether the message must be answered with a canned
// response instead of reaching the backend.
func (v Verdict) Refused() bool {
	return v.Action == ActionRefuse
}

// Redirected reports whether the message may proceed but must verify any
// factual claim through a tool call.
func (v Verdict) Redirected() bool {
	return v.Action == ActionRedirect
}

// Classify inspects the raw (unredacted) message text and returns a verdict.
// Precedence: self harm beats weapons beats secrets beats guess-without-tools.
func Classify(text string) Verdict {
	for _, p := range selfHarmPatterns {
		if p.MatchString(text) {
			return Verdict{Action: ActionRefuse, Category: CategorySelfHarm}
		}
	}
	for _, p := range weaponsPatterns {
		if p.MatchString(text) {
			return Verdict{Action: ActionRefuse, Category: CategoryWeapons}
		}
	}
	if secretPattern.MatchString(text) {
		return Verdict{Action: ActionRefuse, Category: CategorySecrets}
	}
	if guessPattern.MatchString(text) {
		return Verdict{Action: ActionRedirect, Category: CategoryGuessWithoutTools}
	}
	return Verdict{}
}

// RedactSecrets replaces inline API keys so they never reach conversation
// history, the completion backend, or logs.
func RedactSecrets(text string) string {
	return secretPattern.ReplaceAllString(text, "[REDACTED_SECRET]")
}

const selfHarmResponse = "I'm really sorry you're feeling this way. You deserve support right now.\n\n" +
	"If you're in the U.S., you can call or text 988 (Suicide & Crisis Lifeline). " +
	"If you're outside the U.S., tell me your country and I can point you to a local number.\n\n" +
	"If you're in immediate danger, please call your local emergency number right now."

const weaponsResponse = "I'm sorry, but I can't assist with that."

const secretsResponse = "I can't store API keys or secrets. Please remove it from the message " +
	"(and rotate it if it was real)."

const guessResponse = "I can't guess that without using tools or the knowledge base.\n" +
	"If you want, ask normally (e.g., \"What are our office hours?\") and I'll look it up."

// ResponseFor returns the canned response for a flagged category.
// Returns "" for CategoryNone.
func ResponseFor(c Category) string {
	switch c {
	case CategorySelfHarm:
		return selfHarmResponse
	case CategoryWeapons:
		return weaponsResponse
	case CategorySecrets:
		return secretsResponse
	case CategoryGuessWithoutTools:
		return guessResponse
	default:
		return ""
	}
}
