package safety

import (
	"regexp"
	"strings"
)

var markdownRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`#{1,6}\s+`), ""},
	{regexp.MustCompile(`\*\*([^*]+)\*\*`), "${1}"},
	{regexp.MustCompile(`\*([^*]+)\*`), "${1}"},
	{regexp.MustCompile(`__([^_]+)__`), "${1}"},
	{regexp.MustCompile(`_([^_]+)_`), "${1}"},
	{regexp.MustCompile("```[\\s\\S]*?```"), ""},
	{regexp.MustCompile("`([^`]+)`"), "${1}"},
	{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "${1}"},
	{regexp.MustCompile(`(?m)^\s*[-*+]\s+`), ""},
	{regexp.MustCompile(`(?m)^\s*\d+\.\s+`), ""},
	{regexp.MustCompile(`(?m)^\s*>\s+`), ""},
	{regexp.MustCompile(`\n{3,}`), "\n\n"},
}

var (
	spokenSymbols = strings.NewReplacer(
		"&", " và ",
		"@", " a còng ",
		"#", " thăng ",
		"$", " đô la ",
		"%", " phần trăm ",
		"+", " cộng ",
		"=", " bằng ",
	)

	unspeakableRegex = regexp.MustCompile(`(?i)[^\w\s.,!?áàảãạăắằẳẵặâấầẩẫậéèẻẽẹêếềểễệíìỉĩịóòỏõọôốồổỗộơớờởỡợúùủũụưứừửữựýỳỷỹỵđ]`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)
)

// StripMarkdown removes headers, emphasis, code, links, list markers and
// blockquotes, keeping the readable text.
func StripMarkdown(text string) string {
	if text == "" {
		return ""
	}
	for _, rule := range markdownRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return strings.TrimSpace(text)
}

// SanitizeForTTS turns a model reply into plain speakable Vietnamese text:
// markdown is stripped, common symbols are spelled out, anything outside
// letters, digits, basic punctuation and Vietnamese diacritics is dropped, and
// whitespace is collapsed.
func SanitizeForTTS(text string) string {
	if text == "" {
		return ""
	}

	s := StripMarkdown(text)
	s = spokenSymbols.Replace(s)
	s = unspeakableRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")

	return strings.TrimSpace(s)
}
