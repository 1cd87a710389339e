package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/funnylearn/mascotchat/internal/database"
)

// historyLimit is how many turns the session history endpoint returns.
const historyLimit = 20

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id" binding:"required"`
}

type turnResponse struct {
	ID         string    `json:"id"`
	ChildID    string    `json:"child_id"`
	SessionID  string    `json:"session_id"`
	UserQuery  string    `json:"user_query"`
	AIResponse string    `json:"ai_response"`
	PromptUsed string    `json:"prompt_used"`
	IsFlagged  bool      `json:"is_flagged"`
	FlagReason *string   `json:"flag_reason"`
	CreatedAt  time.Time `json:"created_at"`
}

func newTurnResponse(t database.Turn) turnResponse {
	resp := turnResponse{
		ID:         t.ID,
		ChildID:    t.ChildID,
		SessionID:  t.SessionID,
		UserQuery:  t.UserQuery,
		AIResponse: t.AIResponse,
		PromptUsed: t.PromptUsed,
		IsFlagged:  t.IsFlagged,
		CreatedAt:  t.CreatedAt,
	}
	if t.FlagReason.Valid {
		reason := t.FlagReason.String
		resp.FlagReason = &reason
	}
	return resp
}

func newTurnResponses(turns []database.Turn) []turnResponse {
	out := make([]turnResponse, 0, len(turns))
	for _, t := range turns {
		out = append(out, newTurnResponse(t))
	}
	return out
}

// submitTurn returns the turn result as the payload. Rejections are part of
// the result, so only malformed requests get a non-200 status.
func (h *Handler) submitTurn(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res := h.chat.SubmitTurn(c.Request.Context(), c.Param("childId"), req.Message, req.SessionID)
	c.JSON(http.StatusOK, res)
}

func (h *Handler) sessionHistory(c *gin.Context) {
	sessionID := c.Param("sessionId")
	turns, err := h.store.GetSessionHistory(c.Request.Context(), sessionID, historyLimit, true)
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "Failed to load session history", "session_id", sessionID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID, "turns": newTurnResponses(turns)})
}
