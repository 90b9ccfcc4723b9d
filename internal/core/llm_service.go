package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/kiraleos/assignment-helper/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultChatModelName  = "gemini-1.5-flash-latest"
	defaultQueryModelName = "gemini-1.5-flash-8b-latest"
)

// LLMService is the Gemini-backed CompletionProvider.
type LLMService struct {
	client    *genai.Client
	modelName string
	logger    *zap.Logger
}

func NewLLMService(ctx context.Context, apiKey, modelName string, logger *zap.Logger) (*LLMService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if modelName == "" {
		modelName = defaultChatModelName
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &LLMService{
		client:    client,
		modelName: modelName,
		logger:    logger,
	}, nil
}

// WithModel returns a provider sharing the same client but using another model.
func (s *LLMService) WithModel(modelName string) *LLMService {
	if modelName == "" {
		modelName = defaultQueryModelName
	}
	return &LLMService{client: s.client, modelName: modelName, logger: s.logger}
}

func (s *LLMService) Close() {
	if s.client != nil {
		if err := s.client.Close(); err != nil {
			s.logger.Warn("error closing GenAI client", zap.Error(err))
		} else {
			s.logger.Info("GenAI client closed")
		}
	}
}

func (s *LLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("user message is empty for chat completion")
	}

	model := s.client.GenerativeModel(s.modelName)
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}
	if req.Temperature > 0 {
		model.SetTemperature(req.Temperature)
	}
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(req.MaxTokens)
	}

	chatSession := model.StartChat()
	chatSession.History = toGeminiHistory(req.History)

	resp, err := chatSession.SendMessage(ctx, genai.Text(req.UserMessage))
	if err != nil {
		return "", fmt.Errorf("gemini chat SendMessage failed: %w", err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty or non-text response")
	}
	return text, nil
}

// toGeminiHistory maps stored turns to Gemini contents. Gemini expects the
// conversation to open with a user turn and roles to alternate, so leading
// model turns are dropped and consecutive turns of one role are merged. A
// trailing user turn is dropped as well, since the new message follows it.
func toGeminiHistory(history []ChatMessage) []*genai.Content {
	var contents []*genai.Content
	for _, msg := range history {
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		role := "user"
		if msg.Role == store.RoleAssistant {
			role = "model"
		}
		if len(contents) == 0 && role == "model" {
			continue
		}
		if last := len(contents) - 1; last >= 0 && contents[last].Role == role {
			contents[last].Parts = append(contents[last].Parts, genai.Text(msg.Content))
			continue
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}
	if last := len(contents) - 1; last >= 0 && contents[last].Role == "user" {
		contents = contents[:last]
	}
	return contents
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(responseText.String())
}
