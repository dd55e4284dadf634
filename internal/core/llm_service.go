package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	DefaultChatModelName = "gemini-1.5-flash-latest"

	// EmptyReply is returned as a normal answer when the model produced no text.
	EmptyReply = "I'm sorry, I couldn't process that. How can I help you today?"

	chatTemperature = 0.7
	chatTopK        = 40
	chatTopP        = 0.95
)

// Generator produces the assistant's reply for message given the prior
// conversation. Implementations keep no server-side session state.
type Generator interface {
	GenerateReply(ctx context.Context, message string, history []Turn) (string, error)
}

type LLMService struct {
	client            *genai.Client
	modelName         string
	systemInstruction string
	logger            *slog.Logger
}

func NewLLMService(ctx context.Context, apiKey, modelName, systemInstruction string) (*LLMService, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultChatModelName
	}

	return &LLMService{
		client:            client,
		modelName:         modelName,
		systemInstruction: systemInstruction,
		logger:            slog.Default(),
	}, nil
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Error("Error closing GenAI client", "error", err)
		} else {
			s.logger.Info("GenAI client closed.")
		}
	}
}

func (s *LLMService) GenerateReply(ctx context.Context, message string, history []Turn) (string, error) {
	model := s.client.GenerativeModel(s.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(s.systemInstruction)},
	}
	model.SetTemperature(chatTemperature)
	model.SetTopK(chatTopK)
	model.SetTopP(chatTopP)

	chatSession := model.StartChat()
	chatSession.History = buildHistory(history)

	resp, err := chatSession.SendMessage(ctx, genai.Text(message))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		s.logger.Warn("Gemini response was empty or had no valid candidates/parts.")
		return EmptyReply, nil
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			s.logger.Debug("Gemini response part was not text", "type", fmt.Sprintf("%T", part))
		}
	}

	if responseText.Len() == 0 {
		return EmptyReply, nil
	}
	return responseText.String(), nil
}

// buildHistory maps turns to Gemini contents. Gemini expects a conversation
// to open with a user turn, so leading assistant turns (the greeting) are
// left out.
func buildHistory(history []Turn) []*genai.Content {
	start := 0
	for start < len(history) && history[start].Role != RoleUser {
		start++
	}

	contents := make([]*genai.Content, 0, len(history)-start)
	for _, h := range history[start:] {
		contents = append(contents, &genai.Content{
			Role:  geminiRole(h.Role),
			Parts: []genai.Part{genai.Text(h.Text)},
		})
	}
	return contents
}

func geminiRole(r Role) string {
	if r == RoleUser {
		return "user"
	}
	return "model"
}
