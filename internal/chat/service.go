// Package chat runs one mascot chat turn end to end: context resolution,
// quota, the safety gate, prompt construction, the model call, TTS
// sanitization and the audit log.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/funnylearn/mascotchat/internal/auditlog"
	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/database"
	"github.com/funnylearn/mascotchat/internal/gemini"
	"github.com/funnylearn/mascotchat/internal/logger"
	"github.com/funnylearn/mascotchat/internal/metrics"
	"github.com/funnylearn/mascotchat/internal/prompt"
	"github.com/funnylearn/mascotchat/internal/safety"
)

// Profiles loads the context a turn needs.
type Profiles interface {
	GetChildProfile(ctx context.Context, childID string) (*database.ChildProfile, error)
	GetActiveTemplate(ctx context.Context) (*database.PromptTemplate, error)
}

// TurnLog is the audit log as seen by the orchestrator.
type TurnLog interface {
	Append(ctx context.Context, turn *database.Turn) bool
	RecentHistory(ctx context.Context, sessionID string, limit int) ([]database.Turn, error)
}

// TurnCounter counts a child's turns since a point in time.
type TurnCounter interface {
	CountSince(ctx context.Context, childID string, since time.Time) (int, error)
}

// turnRecorder is implemented by counters that cache their result.
type turnRecorder interface {
	Record(ctx context.Context, childID string, since time.Time)
}

// Result is what the caller of SubmitTurn gets back.
type Result struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
	Flagged  bool   `json:"flagged,omitempty"`
}

func failure(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Deps are the collaborators of a Service. Model may be nil, in which case
// every turn fails with MsgNotConfigured.
type Deps struct {
	Profiles Profiles
	TurnLog  TurnLog
	Counter  TurnCounter
	Model    gemini.Client
	Gate     *safety.Gate
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Service is the conversation orchestrator.
type Service struct {
	cfg      config.ChatConfig
	profiles Profiles
	turns    TurnLog
	counter  TurnCounter
	model    gemini.Client
	gate     *safety.Gate
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds a Service. Zero limits in cfg fall back to the defaults.
func NewService(cfg config.ChatConfig, deps Deps) (*Service, error) {
	if deps.Profiles == nil {
		return nil, fmt.Errorf("chat service requires a profile store")
	}
	if deps.TurnLog == nil {
		return nil, fmt.Errorf("chat service requires a turn log")
	}
	if deps.Counter == nil {
		return nil, fmt.Errorf("chat service requires a turn counter")
	}

	if cfg.MaxMessageLength <= 0 {
		cfg.MaxMessageLength = config.DefaultMaxMessageLength
	}
	if cfg.FreeDailyLimit <= 0 {
		cfg.FreeDailyLimit = config.DefaultFreeDailyLimit
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = config.DefaultHistoryLimit
	}

	log := deps.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	log = log.With("component", "chat")

	gate := deps.Gate
	if gate == nil {
		gate = safety.DefaultGate()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	if deps.Model == nil {
		log.Warn("Chat service running without a completion client", "error", ErrNotConfigured)
	}

	return &Service{
		cfg:      cfg,
		profiles: deps.Profiles,
		turns:    deps.TurnLog,
		counter:  deps.Counter,
		model:    deps.Model,
		gate:     gate,
		metrics:  deps.Metrics,
		logger:   log,
		now:      now,
	}, nil
}

// Configured reports whether a completion client is available.
func (s *Service) Configured() bool {
	return s.model != nil
}

// SubmitTurn processes one child message. It never panics and never returns
// an error; every failure becomes a Result carrying a user-facing message.
func (s *Service) SubmitTurn(ctx context.Context, childID, message, sessionID string) (res Result) {
	log := s.logger.With("child_id", childID, "session_id", sessionID)
	outcome := metrics.OutcomeInternalError

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "Recovered from panic in chat turn",
				"panic", r, "stack", string(debug.Stack()))
			outcome = metrics.OutcomeInternalError
			res = failure(MsgGenericError)
		}
		s.metrics.TurnOutcome(outcome)
		log.DebugContext(ctx, "Chat turn finished", "outcome", outcome, "success", res.Success)
	}()

	res, outcome = s.submit(ctx, log, childID, message, sessionID)
	return res
}

func (s *Service) submit(ctx context.Context, log *slog.Logger, childID, message, sessionID string) (Result, string) {
	if s.model == nil {
		return failure(MsgNotConfigured), metrics.OutcomeNotConfigured
	}

	text := strings.TrimSpace(message)
	if text == "" {
		return failure(MsgEmptyMessage), metrics.OutcomeInvalidInput
	}
	if utf8.RuneCountInString(message) > s.cfg.MaxMessageLength {
		return failure(MessageTooLong(s.cfg.MaxMessageLength)), metrics.OutcomeInvalidInput
	}
	if strings.TrimSpace(sessionID) == "" {
		return failure(MsgMissingSession), metrics.OutcomeInvalidInput
	}
	if strings.TrimSpace(childID) == "" {
		return failure(MsgChildNotFound), metrics.OutcomeNotFound
	}

	log.DebugContext(ctx, "Processing chat turn", "preview", logger.Preview(text, 40))

	// 1. Context
	profile, tmpl, err := s.resolve(ctx, childID)
	switch {
	case errors.Is(err, ErrChildNotFound):
		return failure(MsgChildNotFound), metrics.OutcomeNotFound
	case errors.Is(err, ErrNoMascotAssigned):
		return failure(MsgNoMascotAssigned), metrics.OutcomeNotFound
	case err != nil:
		log.ErrorContext(ctx, "Failed to resolve chat context", "error", err)
		return failure(MsgGenericError), metrics.OutcomeInternalError
	}

	// 2. Quota
	since := startOfDay(s.now())
	if profile.Plan == database.PlanFree {
		count, err := s.counter.CountSince(ctx, childID, since)
		if err != nil {
			log.ErrorContext(ctx, "Failed to count today's turns", "error", err)
			return failure(MsgGenericError), metrics.OutcomeInternalError
		}
		if count >= s.cfg.FreeDailyLimit {
			log.InfoContext(ctx, "Daily free quota reached", "count", count, "limit", s.cfg.FreeDailyLimit)
			return failure(QuotaExceeded(s.cfg.FreeDailyLimit)), metrics.OutcomeQuotaExceeded
		}
	}

	// 3. Safety gate
	promptName := NoTemplateName
	subject := safety.Subject{Text: text, Age: profile.Age}
	if tmpl != nil {
		promptName = tmpl.Name
		subject.Rules = tmpl.SafetyRules
		subject.HasTemplate = true
	}
	if verdict := s.gate.Evaluate(subject); !verdict.Safe {
		return s.reject(ctx, log, profile, sessionID, text, promptName, since, verdict)
	}

	// 4. Prompt
	systemInstruction, promptName := s.buildPrompt(ctx, log, tmpl, promptContext(profile))

	// 5. History
	history, err := s.turns.RecentHistory(ctx, sessionID, s.cfg.HistoryLimit)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load session history", "error", err)
		return failure(MsgGenericError), metrics.OutcomeInternalError
	}

	// 6. Model
	started := time.Now()
	reply, err := s.model.Complete(ctx, gemini.Request{
		SystemInstruction: systemInstruction,
		History:           historyMessages(history),
		Message:           text,
	})
	s.metrics.ObserveModelLatency(time.Since(started))

	switch {
	case errors.Is(err, gemini.ErrBlocked):
		log.WarnContext(ctx, "Model reply blocked by provider", "error", err)
		s.logTurn(ctx, auditlog.FlaggedTurn(childID, sessionID, text, MsgTryAnotherTopic, promptName, ReasonProviderBlocked), since)
		return failure(MsgTryAnotherTopic), metrics.OutcomeProviderBlocked

	case errors.Is(err, gemini.ErrEmptyResponse):
		log.WarnContext(ctx, "Model returned no usable reply", "error", err)
		return failure(MsgTryAnotherTopic), metrics.OutcomeProviderBlocked

	case err != nil:
		log.ErrorContext(ctx, "Model call failed", "error", err, "duration", time.Since(started))
		return failure(ClassifyProviderError(err)), metrics.OutcomeProviderError
	}

	// 7. Sanitize
	response := safety.SanitizeForTTS(reply)
	if response == "" {
		log.WarnContext(ctx, "Model reply was empty after sanitization")
		return failure(MsgTryAnotherTopic), metrics.OutcomeProviderBlocked
	}

	// 8. Audit log
	s.logTurn(ctx, auditlog.Turn(childID, sessionID, text, response, promptName), since)

	log.DebugContext(ctx, "Chat turn answered",
		"prompt", promptName,
		"history_count", len(history),
		"socratic", safety.IsSocraticResponse(response),
		"duration", time.Since(started))
	return Result{Success: true, Response: response}, metrics.OutcomeSuccess
}

// resolve loads the child profile and the active template concurrently.
// A profile failure wins over a template failure, so a missing child is
// always reported as such.
func (s *Service) resolve(ctx context.Context, childID string) (*database.ChildProfile, *database.PromptTemplate, error) {
	var (
		profile    *database.ChildProfile
		tmpl       *database.PromptTemplate
		profileErr error
		tmplErr    error
		g          errgroup.Group
	)

	g.Go(func() error {
		profile, profileErr = s.profiles.GetChildProfile(ctx, childID)
		return nil
	})
	g.Go(func() error {
		tmpl, tmplErr = s.profiles.GetActiveTemplate(ctx)
		return nil
	})
	_ = g.Wait()

	switch {
	case errors.Is(profileErr, database.ErrNotFound):
		return nil, nil, ErrChildNotFound
	case profileErr != nil:
		return nil, nil, fmt.Errorf("failed to load child profile: %w", profileErr)
	case profile == nil:
		return nil, nil, ErrChildNotFound
	case profile.Mascot == nil:
		return nil, nil, ErrNoMascotAssigned
	case tmplErr != nil:
		return nil, nil, fmt.Errorf("failed to load active template: %w", tmplErr)
	}
	return profile, tmpl, nil
}

// reject logs a flagged turn for a failed safety check and builds the reply.
func (s *Service) reject(ctx context.Context, log *slog.Logger, profile *database.ChildProfile,
	sessionID, text, promptName string, since time.Time, verdict safety.Verdict,
) (Result, string) {
	var (
		logged  string
		res     Result
		outcome string
	)
	switch verdict.Check {
	case safety.CheckProfanity:
		logged = flaggedProfanityResponse
		res = Result{Error: MsgBePolite, Flagged: true}
		outcome = metrics.OutcomeFlaggedProfanity
	case safety.CheckAge:
		logged = flaggedAgeResponse
		res = Result{Error: safety.SafeAlternativeResponse(profile.Name, profile.Mascot.Name), Flagged: true}
		outcome = metrics.OutcomeFlaggedAge
	default:
		logged = flaggedRulesResponse
		res = Result{Error: MsgBePolite, Flagged: true}
		outcome = metrics.OutcomeFlaggedRule
	}

	log.InfoContext(ctx, "Chat message rejected by safety gate", "check", verdict.Check, "reason", verdict.Reason)
	s.logTurn(ctx, auditlog.FlaggedTurn(profile.ID, sessionID, text, logged, promptName, verdict.Reason), since)
	return res, outcome
}

// buildPrompt hydrates the active template, or falls back to the default prompt.
func (s *Service) buildPrompt(ctx context.Context, log *slog.Logger, tmpl *database.PromptTemplate, pc prompt.Context) (string, string) {
	if tmpl != nil {
		hydrated, err := prompt.Hydrate(tmpl.Content, pc)
		if err == nil {
			return hydrated, tmpl.Name
		}
		log.WarnContext(ctx, "Active template could not be hydrated, using default prompt",
			"template_id", tmpl.ID, "error", err)
	}
	return prompt.DefaultPrompt(pc), prompt.DefaultTemplateName
}

// logTurn appends turn and bumps a caching counter only when the row was
// stored, so the cached count never runs ahead of the table.
func (s *Service) logTurn(ctx context.Context, turn *database.Turn, since time.Time) {
	if !s.turns.Append(ctx, turn) {
		return
	}
	if r, ok := s.counter.(turnRecorder); ok {
		r.Record(ctx, turn.ChildID, since)
	}
}

func promptContext(p *database.ChildProfile) prompt.Context {
	return prompt.Context{
		ChildName:         p.Name,
		ChildAge:          p.Age,
		ChildPersonality:  p.Personality,
		ChildInterests:    p.Interests,
		MascotName:        p.Mascot.Name,
		MascotType:        p.Mascot.Type,
		MascotPersonality: p.Mascot.BasePersonality,
		MascotTraits:      p.Mascot.Traits,
	}
}

// historyMessages turns each logged turn into a user/model pair.
func historyMessages(turns []database.Turn) []gemini.Message {
	msgs := make([]gemini.Message, 0, len(turns)*2)
	for _, t := range turns {
		msgs = append(msgs,
			gemini.Message{Role: gemini.RoleUser, Text: t.UserQuery},
			gemini.Message{Role: gemini.RoleModel, Text: t.AIResponse},
		)
	}
	return msgs
}

// startOfDay is local midnight in t's location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
