package safety

// Flag reasons recorded on rejected turns.
const (
	ReasonProfanity        = "Profanity detected in user message"
	ReasonAgeInappropriate = "Age-inappropriate content detected"
	ReasonRuleViolation    = "Safety rule violation"
)

// Verdict is the outcome of checking one piece of text.
type Verdict struct {
	Safe   bool
	Reason string
	Check  string // name of the check that rejected the text
}

// Safe returns a passing verdict.
func Safe() Verdict { return Verdict{Safe: true} }

// Unsafe returns a failing verdict with the given reason.
func Unsafe(reason string) Verdict { return Verdict{Safe: false, Reason: reason} }

// Subject is what a check sees: the message and the facts that gate it.
type Subject struct {
	Text        string
	Age         int
	Rules       []string
	HasTemplate bool // custom rules apply only when a template is active
}

// Check evaluates a subject and returns a verdict.
type Check interface {
	Name() string
	Evaluate(s Subject) Verdict
}

// Check names.
const (
	CheckProfanity = "profanity"
	CheckAge       = "age"
	CheckRules     = "rules"
)

type checkFunc struct {
	name string
	fn   func(Subject) Verdict
}

func (c checkFunc) Name() string { return c.name }
func (c checkFunc) Evaluate(s Subject) Verdict { return c.fn(s) }

// ProfanityCheck rejects text containing profanity.
func ProfanityCheck() Check {
	return checkFunc{name: CheckProfanity, fn: func(s Subject) Verdict {
		if ContainsProfanity(s.Text) {
			return Unsafe(ReasonProfanity)
		}
		return Safe()
	}}
}

// AgeCheck rejects sensitive topics for young children.
func AgeCheck() Check {
	return checkFunc{name: CheckAge, fn: func(s Subject) Verdict {
		if !IsAgeAppropriate(s.Text, s.Age) {
			return Unsafe(ReasonAgeInappropriate)
		}
		return Safe()
	}}
}

// RulesCheck applies the active template's blocked keywords.
func RulesCheck() Check {
	return checkFunc{name: CheckRules, fn: func(s Subject) Verdict {
		if !s.HasTemplate {
			return Safe()
		}
		v := ValidateSafetyRules(s.Text, s.Rules)
		if !v.Safe && v.Reason == "" {
			v.Reason = ReasonRuleViolation
		}
		return v
	}}
}

// Gate runs checks in order and stops at the first rejection.
type Gate struct {
	checks []Check
}

// NewGate builds a gate from checks evaluated in the given order.
func NewGate(checks ...Check) *Gate {
	return &Gate{checks: checks}
}

// DefaultGate is profanity, then age-appropriateness, then custom rules.
func DefaultGate() *Gate {
	return NewGate(ProfanityCheck(), AgeCheck(), RulesCheck())
}

// Evaluate returns the first unsafe verdict, or a safe one.
func (g *Gate) Evaluate(s Subject) Verdict {
	for _, c := range g.checks {
		v := c.Evaluate(s)
		if !v.Safe {
			v.Check = c.Name()
			return v
		}
	}
	return Safe()
}
