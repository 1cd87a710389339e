// Package gemini is the completion service behind the mascot chat. It wraps
// Google's Gemini API with fixed generation parameters and provider-side
// safety thresholds.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/funnylearn/mascotchat/internal/config"
)

var (
	// ErrBlocked is returned when the provider's own safety filter withheld the reply.
	ErrBlocked = errors.New("response blocked by provider safety filter")
	// ErrEmptyResponse is returned when the provider produced no usable text.
	ErrEmptyResponse = errors.New("provider returned no usable text")
)

// Roles used in conversation history.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one prior turn fed back to the model.
type Message struct {
	Role string
	Text string
}

// Request is a single completion call.
type Request struct {
	SystemInstruction string
	History           []Message
	Message           string
}

// Client defines the completion operation used by the chat service.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

type sdkClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	timeout       time.Duration
}

// NewClient creates a Gemini client. It fails when no API key is configured;
// callers decide how to run without one.
func NewClient(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.ModelName)
	return &sdkClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: NewContentConfig(cfg),
		modelName:     cfg.ModelName,
		timeout:       cfg.Timeout,
	}, nil
}

// NewContentConfig builds the generation parameters and the four
// block-medium-and-above safety settings applied to every call.
func NewContentConfig(cfg config.GeminiConfig) *genai.GenerateContentConfig {
	temperature := cfg.Temperature
	topP := cfg.TopP
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		TopP:            &topP,
		MaxOutputTokens: cfg.MaxOutputTokens,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	}
}

// BuildContents turns history plus the new message into provider contents.
func BuildContents(history []Message, message string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return append(contents, genai.NewContentFromText(message, genai.RoleUser))
}

// Complete sends one request. Calls are not retried; the configured timeout
// bounds each call.
func (c *sdkClient) Complete(ctx context.Context, req Request) (string, error) {
	c.log.DebugContext(ctx, "Generating reply", "history_count", len(req.History))

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := *c.contentConfig
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}}
	}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, BuildContents(req.History, req.Message), &cfg)
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini reply generation failed", "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	text, err := TextFromResponse(resp)
	if err != nil {
		c.log.WarnContext(ctx, "Gemini returned no usable reply", "error", err)
		return "", err
	}
	return text, nil
}

// TextFromResponse extracts the reply text, reporting provider blocks as
// ErrBlocked and missing text as ErrEmptyResponse.
func TextFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", ErrEmptyResponse
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified && resp.PromptFeedback.BlockReason != "" {
		reason := string(resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		return "", fmt.Errorf("%w: prompt blocked: %s", ErrBlocked, reason)
	}

	if len(resp.Candidates) > 0 {
		switch resp.Candidates[0].FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
			return "", fmt.Errorf("%w: finish reason %s", ErrBlocked, resp.Candidates[0].FinishReason)
		}
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", ErrEmptyResponse
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
