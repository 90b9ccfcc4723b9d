package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmorganca/ollama/api"
	"github.com/kiraleos/assignment-helper/internal/store"
	"go.uber.org/zap"
)

const defaultOllamaModelName = "llama3.1"

// OllamaService is a CompletionProvider backed by a local Ollama server.
type OllamaService struct {
	client    *api.Client
	modelName string
	logger    *zap.Logger
}

func NewOllamaService(client *api.Client, modelName string, logger *zap.Logger) *OllamaService {
	if modelName == "" {
		modelName = defaultOllamaModelName
	}
	return &OllamaService{client: client, modelName: modelName, logger: logger}
}

func (s *OllamaService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.UserMessage) == "" {
		return "", fmt.Errorf("user message is empty for chat completion")
	}

	messages := make([]api.Message, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, api.Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, msg := range req.History {
		role := "user"
		if msg.Role == store.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, api.Message{Role: role, Content: msg.Content})
	}
	messages = append(messages, api.Message{Role: "user", Content: req.UserMessage})

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := false
	chatReq := &api.ChatRequest{
		Model:    s.modelName,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}

	var out strings.Builder
	err := s.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat failed: %w", err)
	}

	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", fmt.Errorf("ollama returned an empty response")
	}
	s.logger.Debug("ollama completion", zap.String("model", s.modelName), zap.Int("chars", len(text)))
	return text, nil
}
