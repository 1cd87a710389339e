package gemini_test

import (
	"errors"
	"testing"

	"google.golang.org/genai"

	"github.com/funnylearn/mascotchat/internal/config"
	"github.com/funnylearn/mascotchat/internal/gemini"
)

func TestNewContentConfig(t *testing.T) {
	t.Parallel()

	cfg := gemini.NewContentConfig(config.GeminiConfig{Temperature: 0.7, TopP: 0.9, MaxOutputTokens: 2000})

	if cfg.Temperature == nil || *cfg.Temperature != 0.7 {
		t.Errorf("Temperature = %v, want 0.7", cfg.Temperature)
	}
	if cfg.TopP == nil || *cfg.TopP != 0.9 {
		t.Errorf("TopP = %v, want 0.9", cfg.TopP)
	}
	if cfg.MaxOutputTokens != 2000 {
		t.Errorf("MaxOutputTokens = %d, want 2000", cfg.MaxOutputTokens)
	}
	if len(cfg.SafetySettings) != 4 {
		t.Fatalf("SafetySettings has %d entries, want 4", len(cfg.SafetySettings))
	}
	for _, s := range cfg.SafetySettings {
		if s.Threshold != genai.HarmBlockThresholdBlockMediumAndAbove {
			t.Errorf("category %s threshold = %s, want medium and above", s.Category, s.Threshold)
		}
	}
}

func TestBuildContents(t *testing.T) {
	t.Parallel()

	contents := gemini.BuildContents([]gemini.Message{
		{Role: gemini.RoleUser, Text: "con mèo ăn gì?"},
		{Role: gemini.RoleModel, Text: "Em nghĩ sao?"},
	}, "cá")

	if len(contents) != 3 {
		t.Fatalf("got %d contents, want 3", len(contents))
	}
	wantRoles := []string{genai.RoleUser, genai.RoleModel, genai.RoleUser}
	wantTexts := []string{"con mèo ăn gì?", "Em nghĩ sao?", "cá"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if c.Parts[0].Text != wantTexts[i] {
			t.Errorf("contents[%d].Text = %q, want %q", i, c.Parts[0].Text, wantTexts[i])
		}
	}
}

func TestTextFromResponse(t *testing.T) {
	t.Parallel()

	textCandidate := func(text string, reason genai.FinishReason) *genai.Candidate {
		return &genai.Candidate{
			Content:      genai.NewContentFromText(text, genai.RoleModel),
			FinishReason: reason,
		}
	}

	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		want    string
		wantErr error
	}{
		{
			name: "text",
			resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{textCandidate(" Xin chào! ", genai.FinishReasonStop)}},
			want: "Xin chào!",
		},
		{
			name:    "nil response",
			wantErr: gemini.ErrEmptyResponse,
		},
		{
			name:    "no candidates",
			resp:    &genai.GenerateContentResponse{},
			wantErr: gemini.ErrEmptyResponse,
		},
		{
			name: "prompt blocked",
			resp: &genai.GenerateContentResponse{
				PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
			},
			wantErr: gemini.ErrBlocked,
		},
		{
			name:    "candidate stopped for safety",
			resp:    &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}},
			wantErr: gemini.ErrBlocked,
		},
		{
			name:    "whitespace only",
			resp:    &genai.GenerateContentResponse{Candidates: []*genai.Candidate{textCandidate("  ", genai.FinishReasonStop)}},
			wantErr: gemini.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := gemini.TextFromResponse(tt.resp)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("TextFromResponse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("TextFromResponse() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("TextFromResponse() = %q, want %q", got, tt.want)
			}
		})
	}
}
