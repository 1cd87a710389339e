package database

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("record not found")

// Subscription plans.
const (
	PlanFree    = "FREE"
	PlanPremium = "PREMIUM"
	PlanFamily  = "FAMILY"
)

// StringList is an ordered list of tags stored as a JSON array in a TEXT column.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("failed to encode string list: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into StringList", src)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode string list: %w", err)
	}
	*l = out
	return nil
}

// Mascot is a companion character a child talks to.
type Mascot struct {
	ID              string     `db:"id"`
	Name            string     `db:"name"`
	Type            string     `db:"type"`
	BasePersonality string     `db:"base_personality"`
	BaseGreeting    string     `db:"base_greeting"`
	Traits          StringList `db:"traits"`
	CreatedAt       time.Time  `db:"created_at"`
}

// Child is a child profile owned by a parent.
type Child struct {
	ID          string         `db:"id"`
	ParentID    string         `db:"parent_id"`
	Name        string         `db:"name"`
	Age         int            `db:"age"`
	Personality StringList     `db:"personality"`
	Interests   StringList     `db:"interests"`
	MascotID    sql.NullString `db:"mascot_id"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

// ChildProfile is a child joined with its mascot and its parent's plan.
// Mascot is nil when none is assigned; Plan is empty when the parent has no
// subscription row.
type ChildProfile struct {
	Child
	Mascot *Mascot
	Plan   string
}

// PromptTemplate is an administrator-managed system prompt.
type PromptTemplate struct {
	ID          int64      `db:"id" json:"id"`
	Name        string     `db:"name" json:"name"`
	Description string     `db:"description" json:"description"`
	Content     string     `db:"content" json:"content"`
	SafetyRules StringList `db:"safety_rules" json:"safety_rules"`
	Version     int        `db:"version" json:"version"`
	IsActive    bool       `db:"is_active" json:"is_active"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Turn is one audited exchange between a child and the mascot.
// IsFlagged is true exactly when FlagReason is valid.
type Turn struct {
	ID         string         `db:"id"`
	ChildID    string         `db:"child_id"`
	SessionID  string         `db:"session_id"`
	UserQuery  string         `db:"user_query"`
	AIResponse string         `db:"ai_response"`
	PromptUsed string         `db:"prompt_used"`
	IsFlagged  bool           `db:"is_flagged"`
	FlagReason sql.NullString `db:"flag_reason"`
	CreatedAt  time.Time      `db:"created_at"`
}

// TurnFilter narrows an admin listing of turns.
type TurnFilter struct {
	ChildID string
	Flagged *bool
	Limit   int
	Offset  int
}

// Stats summarizes templates and conversations for moderators.
type Stats struct {
	Templates       int `db:"templates" json:"templates"`
	ActiveTemplates int `db:"active_templates" json:"active_templates"`
	Conversations   int `db:"conversations" json:"conversations"`
	FlaggedTurns    int `db:"flagged" json:"flagged_conversations"`
}
