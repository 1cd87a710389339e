package moderation

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/logger"
)

const (
	defaultListLimit = 10
	maxListLimit     = 50
	previewRunes     = 120
)

const helpText = `Mascot chat moderation
/flagged [n] - latest flagged conversations
/flag <log_id> <reason> - flag a conversation
/unflag <log_id> - clear a flag
/stats - template and conversation counts`

// commandArgs returns the words after the command itself.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// parseLimit reads an optional positive count, clamped to maxN.
func parseLimit(args []string, def, maxN int) int {
	if len(args) == 0 {
		return def
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return def
	}
	if n > maxN {
		return maxN
	}
	return n
}

// parseFlagArgs splits "<log_id> [reason...]".
func parseFlagArgs(args []string) (id, reason string, ok bool) {
	if len(args) == 0 {
		return "", "", false
	}
	return args[0], strings.Join(args[1:], " "), true
}

// FormatAlert renders the moderator alert for a flagged turn.
func FormatAlert(t database.Turn) string {
	var sb strings.Builder
	sb.WriteString("🚩 Flagged conversation\n")
	fmt.Fprintf(&sb, "Reason: %s\n", t.FlagReason.String)
	fmt.Fprintf(&sb, "Child: %s\n", t.ChildID)
	fmt.Fprintf(&sb, "Session: %s\n", t.SessionID)
	fmt.Fprintf(&sb, "Message: %s\n", logger.Preview(t.UserQuery, previewRunes))
	fmt.Fprintf(&sb, "Log ID: %s", t.ID)
	return sb.String()
}

// FormatTurnList renders a page of turns for the /flagged command.
func FormatTurnList(turns []database.Turn, total int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Flagged conversations (%d of %d)\n", len(turns), total)
	for i, t := range turns {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, t.CreatedAt.UTC().Format(time.DateTime))
		fmt.Fprintf(&sb, "   Reason: %s\n", t.FlagReason.String)
		fmt.Fprintf(&sb, "   Child: %s\n", t.ChildID)
		fmt.Fprintf(&sb, "   Message: %s\n", logger.Preview(t.UserQuery, previewRunes))
		fmt.Fprintf(&sb, "   Log ID: %s\n", t.ID)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// FormatStats renders the /stats reply.
func FormatStats(s *database.Stats) string {
	return fmt.Sprintf("Templates: %d (%d active)\nConversations: %d\nFlagged: %d",
		s.Templates, s.ActiveTemplates, s.Conversations, s.FlaggedTurns)
}
