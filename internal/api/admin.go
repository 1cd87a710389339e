package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/prompt"
)

type validateTemplateRequest struct {
	Content string `json:"content"`
}

type templateRequest struct {
	Name        string   `json:"name" binding:"required,max=100"`
	Description string   `json:"description" binding:"max=500"`
	Content     string   `json:"content" binding:"required"`
	SafetyRules []string `json:"safety_rules" binding:"omitempty,dive,max=100"`
}

func (r templateRequest) toTemplate() *database.PromptTemplate {
	rules := make(database.StringList, 0, len(r.SafetyRules))
	for _, rule := range r.SafetyRules {
		if rule = strings.TrimSpace(rule); rule != "" {
			rules = append(rules, rule)
		}
	}
	return &database.PromptTemplate{
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Content:     r.Content,
		SafetyRules: rules,
	}
}

type flagRequest struct {
	IsFlagged  *bool  `json:"is_flagged" binding:"required"`
	FlagReason string `json:"flag_reason"`
}

func (h *Handler) validateTemplate(c *gin.Context) {
	var req validateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result := prompt.Validate(req.Content)
	c.JSON(http.StatusOK, gin.H{
		"valid":     result.Valid,
		"errors":    result.Errors,
		"variables": prompt.ExtractVariables(req.Content),
	})
}

func (h *Handler) listTemplates(c *gin.Context) {
	templates, err := h.store.ListTemplates(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to list templates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func (h *Handler) createTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if result := prompt.Validate(req.Content); !result.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid template", "errors": result.Errors})
		return
	}

	tmpl := req.toTemplate()
	if err := h.store.CreateTemplate(c.Request.Context(), tmpl); err != nil {
		if isUniqueViolation(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "a template with this name already exists"})
			return
		}
		h.internalError(c, "Failed to create template", err)
		return
	}
	c.JSON(http.StatusCreated, tmpl)
}

func (h *Handler) updateTemplate(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if result := prompt.Validate(req.Content); !result.Valid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid template", "errors": result.Errors})
		return
	}

	tmpl := req.toTemplate()
	tmpl.ID = id
	err := h.store.UpdateTemplate(c.Request.Context(), tmpl)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	case isUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "a template with this name already exists"})
		return
	case err != nil:
		h.internalError(c, "Failed to update template", err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) activateTemplate(c *gin.Context) {
	id, ok := templateID(c)
	if !ok {
		return
	}

	err := h.store.ActivateTemplate(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "template not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to activate template", err)
		return
	}

	tmpl, err := h.store.GetTemplate(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "Failed to reload template", err)
		return
	}
	c.JSON(http.StatusOK, tmpl)
}

func (h *Handler) listLogs(c *gin.Context) {
	filter := database.TurnFilter{ChildID: c.Query("child_id")}

	if v := c.Query("flagged"); v != "" {
		flagged, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flagged value"})
			return
		}
		filter.Flagged = &flagged
	}

	var err error
	if filter.Limit, err = strconv.Atoi(c.DefaultQuery("limit", "50")); err != nil || filter.Limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}
	if filter.Offset, err = strconv.Atoi(c.DefaultQuery("offset", "0")); err != nil || filter.Offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}

	turns, total, err := h.store.ListTurns(c.Request.Context(), filter)
	if err != nil {
		h.internalError(c, "Failed to list conversation logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":   newTurnResponses(turns),
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *Handler) setLogFlag(c *gin.Context) {
	id := c.Param("id")

	var req flagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if *req.IsFlagged && strings.TrimSpace(req.FlagReason) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "flag_reason is required when flagging"})
		return
	}

	err := h.store.SetTurnFlag(c.Request.Context(), id, *req.IsFlagged, req.FlagReason)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation log not found"})
		return
	}
	if err != nil {
		h.internalError(c, "Failed to update conversation flag", err)
		return
	}

	turn, err := h.store.GetTurn(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "Failed to reload conversation log", err)
		return
	}
	c.JSON(http.StatusOK, newTurnResponse(*turn))
}

func (h *Handler) stats(c *gin.Context) {
	stats, err := h.store.GetStats(c.Request.Context())
	if err != nil {
		h.internalError(c, "Failed to load stats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.ErrorContext(c.Request.Context(), msg, "error", err)
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": strings.ToLower(msg)})
}

func templateID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template id"})
		return 0, false
	}
	return id, true
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
