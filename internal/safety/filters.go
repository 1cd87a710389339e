// Package safety holds the content checks applied to a child's message before
// it reaches the model, and the sanitization applied to the model's reply
// before it is logged or spoken.
package safety

import (
	"fmt"
	"strings"
)

// AgeGateThreshold is the age from which sensitive-topic checks stop applying.
const AgeGateThreshold = 10

var profanityList = []string{
	"đồ ngu",
	"ngu ngốc",
	"khốn nạn",
	"stupid",
	"idiot",
	"hate",
}

var sensitiveTopics = []string{
	"violence",
	"bạo lực",
	"weapon",
	"vũ khí",
	"alcohol",
	"rượu bia",
	"drug",
	"ma túy",
}

var socraticPhrases = []string{
	"em nghĩ",
	"em có thể",
	"tại sao",
	"như thế nào",
	"điều gì",
	"em thử",
	"hãy suy nghĩ",
}

// ContainsProfanity reports whether text contains any profanity keyword.
// Matching is plain case-insensitive substring containment.
func ContainsProfanity(text string) bool {
	return containsAny(strings.ToLower(text), profanityList)
}

// IsAgeAppropriate reports whether text is suitable for a child of the given
// age. Only children younger than AgeGateThreshold are checked.
func IsAgeAppropriate(text string, age int) bool {
	if text == "" || age >= AgeGateThreshold {
		return true
	}
	return !containsAny(strings.ToLower(text), sensitiveTopics)
}

// ValidateSafetyRules matches text against a template's blocked keywords and
// returns a verdict naming the first rule that matched.
func ValidateSafetyRules(text string, rules []string) Verdict {
	if text == "" || len(rules) == 0 {
		return Safe()
	}

	lower := strings.ToLower(text)
	for _, rule := range rules {
		if rule == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(rule)) {
			return Unsafe(fmt.Sprintf("Content contains blocked keyword: %s", rule))
		}
	}
	return Safe()
}

// IsSocraticResponse reports whether a reply guides with a question rather
// than stating an answer outright.
func IsSocraticResponse(text string) bool {
	if text == "" {
		return false
	}
	return strings.Contains(text, "?") || containsAny(strings.ToLower(text), socraticPhrases)
}

// SafeAlternativeResponse is the polite refusal shown when a message is rejected.
func SafeAlternativeResponse(childName, mascotName string) string {
	return fmt.Sprintf("Xin lỗi %s, %s không thể trả lời câu hỏi đó. Hãy thử hỏi về những chủ đề học tập khác nhé! 😊", childName, mascotName)
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
