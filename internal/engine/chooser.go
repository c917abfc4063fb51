package engine

import "regexp"

// Request routing patterns. When a message plainly needs a tool, the
// loop is told to require that tool so the model cannot answer from
// stale weights.
var (
	weatherRe     = regexp.MustCompile(`(?i)\b(weather|temperature|forecast)\b`)
	kbRe          = regexp.MustCompile(`(?i)\b(office hours|office|grading|grades?|percent|percentage|rubric|points|weight|weights)\b`)
	scoreWordsRe  = regexp.MustCompile(`(?i)\b(project|projects|exam|exams|participation)\b`)
	currentFactRe = regexp.MustCompile(`(?i)\b(current|today|latest|who is|president|prime minister|secretary of state)\b`)
	questionishRe = regexp.MustCompile(`(?i)\?\s*$|\b(what|when|where|who|how|can you|could you|tell me)\b`)
	kbQuestionRe  = regexp.MustCompile(`(?i)\b(what|when|where|hours|percent|percentage|rubric|grading)\b`)
	profileSetRe  = regexp.MustCompile(`(?i)\b(remember|my name is|i am|i'm|call me|my major is|i major in|my major)\b`)
	digitRe       = regexp.MustCompile(`\d`)
)

// chooseRequiredTool maps a user message to the tool it must run, or ""
// when the model is free to decide. Memory statements never force tools.
func chooseRequiredTool(text string) string {
	if profileSetRe.MatchString(text) {
		return ""
	}

	switch {
	case weatherRe.MatchString(text):
		return "get_weather"
	case kbRe.MatchString(text) && (questionishRe.MatchString(text) || kbQuestionRe.MatchString(text)):
		return "kb_search"
	case scoreWordsRe.MatchString(text) && digitRe.MatchString(text):
		return "calculate_grade"
	case currentFactRe.MatchString(text):
		return "web_lookup"
	}
	return ""
}
