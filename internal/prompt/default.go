package prompt

import (
	"fmt"
	"strings"
)

// DefaultTemplateName is recorded on turns answered with DefaultPrompt.
const DefaultTemplateName = "Default Socratic Prompt"

var defaultGuidelines = []string{
	"Always respond in Vietnamese",
	"Use age-appropriate language",
	"Ask guiding questions instead of giving answers",
	"Be encouraging and positive",
	"Keep responses concise (2-3 sentences)",
	"Never use markdown formatting (for text-to-speech compatibility)",
	"Stay on educational topics appropriate for children",
}

// DefaultPrompt builds the fallback Socratic-tutor system prompt used when no
// template is active.
func DefaultPrompt(c Context) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "You are %s, a friendly %s helping %s, age %d.\n\n",
		sanitizeValue(c.MascotName), sanitizeValue(c.MascotType), sanitizeValue(c.ChildName), c.ChildAge)
	sb.WriteString("Your role is to be a Socratic teacher - guide through questions, never give direct answers. Encourage curiosity and critical thinking.\n\n")
	fmt.Fprintf(&sb, "Child's interests: %s\n", formatList(c.ChildInterests))
	fmt.Fprintf(&sb, "Child's personality: %s\n\n", formatList(c.ChildPersonality))
	fmt.Fprintf(&sb, "Your personality: %s\n", sanitizeValue(c.MascotPersonality))
	fmt.Fprintf(&sb, "Your traits: %s\n\n", formatList(c.MascotTraits))
	sb.WriteString("Guidelines:")
	for i, g := range defaultGuidelines {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, g)
	}

	return sb.String()
}
