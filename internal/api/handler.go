// Package api is the HTTP surface of the mascot chat service.
package api

import (
	"context"
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/funnylearn/mascotchat/internal/chat"
	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/logger"
	"github.com/funnylearn/mascotchat/internal/metrics"
)

// AdminTokenHeader carries the shared admin secret.
const AdminTokenHeader = "X-Admin-Token"

// ChatService runs chat turns.
type ChatService interface {
	SubmitTurn(ctx context.Context, childID, message, sessionID string) chat.Result
	Configured() bool
}

// Store is the persistence used by the HTTP handlers.
type Store interface {
	Ping(ctx context.Context) error
	GetSessionHistory(ctx context.Context, sessionID string, limit int, includeFlagged bool) ([]database.Turn, error)
	ListTemplates(ctx context.Context) ([]database.PromptTemplate, error)
	GetTemplate(ctx context.Context, id int64) (*database.PromptTemplate, error)
	CreateTemplate(ctx context.Context, tmpl *database.PromptTemplate) error
	UpdateTemplate(ctx context.Context, tmpl *database.PromptTemplate) error
	ActivateTemplate(ctx context.Context, id int64) error
	ListTurns(ctx context.Context, filter database.TurnFilter) ([]database.Turn, int, error)
	GetTurn(ctx context.Context, id string) (*database.Turn, error)
	SetTurnFlag(ctx context.Context, id string, flagged bool, reason string) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// Handler wires HTTP routes to the chat service and the store.
type Handler struct {
	chat       ChatService
	store      Store
	metrics    *metrics.Metrics
	adminToken string
	logger     *slog.Logger
}

// NewHandler constructs a Handler. An empty adminToken leaves the admin
// routes unregistered.
func NewHandler(chatService ChatService, store Store, m *metrics.Metrics, adminToken string, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		chat:       chatService,
		store:      store,
		metrics:    m,
		adminToken: adminToken,
		logger:     log.With("component", "api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)
	router.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	v1 := router.Group("/api/v1")
	v1.POST("/children/:childId/chat", h.submitTurn)
	v1.GET("/sessions/:sessionId/history", h.sessionHistory)

	if h.adminToken == "" {
		h.logger.Info("Admin token not configured, admin routes disabled")
		return
	}

	admin := v1.Group("/admin")
	admin.Use(h.requireAdmin())
	admin.POST("/templates/validate", h.validateTemplate)
	admin.GET("/templates", h.listTemplates)
	admin.POST("/templates", h.createTemplate)
	admin.PUT("/templates/:id", h.updateTemplate)
	admin.POST("/templates/:id/activate", h.activateTemplate)
	admin.GET("/logs", h.listLogs)
	admin.PATCH("/logs/:id/flag", h.setLogFlag)
	admin.GET("/stats", h.stats)
}

// NewRouter builds a gin engine with recovery, request logging and the routes.
func NewRouter(h *Handler, log *slog.Logger) *gin.Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	router := gin.New()
	router.Use(gin.Recovery(), logger.GinMiddleware(log.With("component", "http")))
	h.RegisterRoutes(router)
	return router
}

// NewServer wraps handler in an http.Server configured from cfg.
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.GetHeader(AdminTokenHeader)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			h.logger.WarnContext(c.Request.Context(), "Rejected admin request", "path", c.FullPath(), "client_ip", c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin token required"})
			return
		}
		c.Next()
	}
}

func (h *Handler) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Health check failed", "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "database unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_configured": h.chat.Configured()})
}
