package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kiraleos/assignment-helper/internal/store"
	"github.com/kiraleos/assignment-helper/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultHistoryWindow = 10
	DefaultCallTimeout   = 60 * time.Second

	// MaxSuggestedVideos is how many videos are attached to one answer.
	MaxSuggestedVideos = 3
	// MaxListedSuggestions bounds the saved-videos listing.
	MaxListedSuggestions = 50

	answerTemperature = 0.7
	answerMaxTokens   = 1500
	queryTemperature  = 0.3
	queryMaxTokens    = 30
)

type ChatService struct {
	history     store.HistoryStore
	assignments AssignmentLookup
	llm         CompletionProvider
	queryLLM    CompletionProvider // smaller model for search queries
	videos      VideoSearcher      // nil disables video suggestions
	policy      *Policy
	logger      *zap.Logger

	historyWindow int
	callTimeout   time.Duration
}

type ChatOption func(*ChatService)

// WithHistoryWindow sets how many stored turns are sent to the completion provider.
func WithHistoryWindow(n int) ChatOption {
	return func(s *ChatService) {
		if n >= 0 {
			s.historyWindow = n
		}
	}
}

// WithCallTimeout bounds every individual external call.
func WithCallTimeout(d time.Duration) ChatOption {
	return func(s *ChatService) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithQueryProvider sets the provider used to derive video search queries.
func WithQueryProvider(p CompletionProvider) ChatOption {
	return func(s *ChatService) { s.queryLLM = p }
}

func NewChatService(history store.HistoryStore, assignments AssignmentLookup, llm CompletionProvider, videos VideoSearcher, policy *Policy, logger *zap.Logger, opts ...ChatOption) *ChatService {
	s := &ChatService{
		history:       history,
		assignments:   assignments,
		llm:           llm,
		queryLLM:      llm,
		videos:        videos,
		policy:        policy,
		logger:        logger,
		historyWindow: DefaultHistoryWindow,
		callTimeout:   DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type AskRequest struct {
	AssignmentID       string
	StudentID          string
	Question           string
	InteractionType    store.InteractionType
	PreviousAIResponse string
}

type AskResponse struct {
	Answer           string                `json:"answer"`
	VideoLinks       []store.VideoLink     `json:"video_links"`
	AssignmentTitle  string                `json:"assignment_title"`
	ShouldShowVideos bool                  `json:"should_show_videos"`
	InteractionType  store.InteractionType `json:"interaction_type"`
}

// Ask answers one student message according to its interaction type.
func (s *ChatService) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	mode := req.InteractionType
	if mode == "" {
		mode = store.InteractionAIResponse
	}
	if err := validateAsk(mode, req); err != nil {
		return nil, err
	}

	key := store.ConversationKey{StudentID: req.StudentID, AssignmentID: req.AssignmentID}
	log := s.logger.With(
		zap.String("student_id", key.StudentID),
		zap.String("assignment_id", key.AssignmentID),
		zap.String("interaction_type", string(mode)),
	)

	greeting := mode == store.InteractionGreeting ||
		(mode == store.InteractionAIResponse && IsGreeting(req.Question))

	var assignment *Assignment
	var history []store.Turn

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		callCtx, cancel := s.callContext(gctx)
		defer cancel()
		a, err := s.assignments.GetAssignment(callCtx, req.AssignmentID)
		if err != nil {
			return err
		}
		assignment = a
		return nil
	})
	if mode == store.InteractionAIResponse && !greeting {
		g.Go(func() error {
			history = s.loadHistory(gctx, key, log)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("assignment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	switch {
	case greeting:
		return s.greet(ctx, key, assignment, log)
	case mode == store.InteractionAIResponse:
		return s.answer(ctx, key, assignment, req.Question, history, log)
	default:
		return s.continueConversation(ctx, key, assignment, req.Question, req.PreviousAIResponse, log)
	}
}

func validateAsk(mode store.InteractionType, req AskRequest) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid interaction_type %q: %w", mode, ErrInvalidArgument)
	}
	if strings.TrimSpace(req.StudentID) == "" || strings.TrimSpace(req.AssignmentID) == "" {
		return fmt.Errorf("student_id and assignment_id are required: %w", ErrInvalidArgument)
	}
	if mode != store.InteractionGreeting && strings.TrimSpace(req.Question) == "" {
		return fmt.Errorf("question cannot be empty: %w", ErrInvalidArgument)
	}
	if mode == store.InteractionUserQuestion && strings.TrimSpace(req.PreviousAIResponse) == "" {
		return fmt.Errorf("previous_ai_response is required for user_question: %w", ErrInvalidArgument)
	}
	return nil
}

func (s *ChatService) greet(ctx context.Context, key store.ConversationKey, assignment *Assignment, log *zap.Logger) (*AskResponse, error) {
	message, err := s.policy.GreetingMessage(assignment.Title)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	if _, err := s.history.Append(callCtx, key, store.RoleAssistant, message, store.InteractionGreeting); err != nil {
		log.Error("failed to store greeting", zap.Error(err))
	}
	log.Info("greeting sent")

	return &AskResponse{
		Answer:           message,
		VideoLinks:       []store.VideoLink{},
		AssignmentTitle:  assignment.Title,
		ShouldShowVideos: false,
		InteractionType:  store.InteractionGreeting,
	}, nil
}

func (s *ChatService) answer(ctx context.Context, key store.ConversationKey, assignment *Assignment, question string, history []store.Turn, log *zap.Logger) (*AskResponse, error) {
	fullSolution := IsRequestingFullSolution(question)
	system, err := s.policy.SystemPrompt(store.InteractionAIResponse, assignment, fullSolution, "")
	if err != nil {
		return nil, err
	}

	answer, err := s.complete(ctx, s.llm, CompletionRequest{
		SystemPrompt: system,
		History:      toChatMessages(lastTurns(history, s.historyWindow)),
		UserMessage:  question,
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
	})
	if err != nil {
		log.Error("answer generation failed", zap.Error(err))
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	s.persistExchange(ctx, key, question, answer, store.InteractionAIResponse, log)

	resp := &AskResponse{
		Answer:          answer,
		VideoLinks:      []store.VideoLink{},
		AssignmentTitle: assignment.Title,
		InteractionType: store.InteractionAIResponse,
	}

	if s.videos == nil || !ShouldSuggestVideos(question, answer) {
		log.Info("answered without videos", zap.Bool("full_solution", fullSolution))
		return resp, nil
	}
	resp.ShouldShowVideos = true
	resp.VideoLinks = s.suggestVideos(ctx, key, assignment, question, answer, log)
	log.Info("answered with video suggestion",
		zap.Bool("full_solution", fullSolution),
		zap.Int("videos", len(resp.VideoLinks)))
	return resp, nil
}

func (s *ChatService) continueConversation(ctx context.Context, key store.ConversationKey, assignment *Assignment, question, previous string, log *zap.Logger) (*AskResponse, error) {
	system, err := s.policy.SystemPrompt(store.InteractionUserQuestion, assignment, IsRequestingFullSolution(question), previous)
	if err != nil {
		return nil, err
	}

	answer, err := s.complete(ctx, s.llm, CompletionRequest{
		SystemPrompt: system,
		UserMessage:  question,
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
	})
	if err != nil {
		log.Error("continuation failed", zap.Error(err))
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	s.persistExchange(ctx, key, question, answer, store.InteractionUserQuestion, log)
	log.Info("continuation answered")

	return &AskResponse{
		Answer:          answer,
		VideoLinks:      []store.VideoLink{},
		AssignmentTitle: assignment.Title,
		InteractionType: store.InteractionUserQuestion,
	}, nil
}

func (s *ChatService) suggestVideos(ctx context.Context, key store.ConversationKey, assignment *Assignment, question, answer string, log *zap.Logger) []store.VideoLink {
	query := s.searchQuery(ctx, question, answer, assignment.FullText, log)

	callCtx, cancel := s.callContext(ctx)
	videos, err := s.videos.Search(callCtx, query, MaxSuggestedVideos)
	cancel()
	if err != nil {
		log.Warn("video search failed", zap.String("query", query), zap.Error(err))
		return []store.VideoLink{}
	}
	if len(videos) == 0 {
		log.Info("no videos found", zap.String("query", query))
		return []store.VideoLink{}
	}

	suggestion := &store.VideoSuggestion{
		StudentID:    key.StudentID,
		AssignmentID: key.AssignmentID,
		Question:     question,
		Query:        query,
		Videos:       videos,
	}
	callCtx, cancel = s.callContext(ctx)
	defer cancel()
	if err := s.history.SaveVideoSuggestion(callCtx, suggestion); err != nil {
		log.Error("failed to store video suggestion", zap.Error(err))
	}
	return videos
}

// searchQuery asks the query model for a short search string and falls back
// to keyword extraction when that call fails.
func (s *ChatService) searchQuery(ctx context.Context, question, answer, assignmentText string, log *zap.Logger) string {
	prompt, err := s.policy.SearchQueryPrompt(question, answer, assignmentText)
	if err == nil {
		var query string
		query, err = s.complete(ctx, s.queryLLM, CompletionRequest{
			UserMessage: prompt,
			Temperature: queryTemperature,
			MaxTokens:   queryMaxTokens,
		})
		if err == nil {
			if query = cleanQuery(query); query != "" {
				return query
			}
		}
	}
	if err != nil {
		log.Warn("search query generation failed, using keywords", zap.Error(err))
	}
	return keywordQuery(question, answer)
}

func cleanQuery(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	return strings.Trim(line, "\"'`\r\t .")
}

func keywordQuery(question, answer string) string {
	keywords := utils.ExtractKeywords(question+" "+answer, 5)
	return strings.TrimSpace(strings.Join(keywords, " ") + " tutorial explanation")
}

func (s *ChatService) complete(ctx context.Context, provider CompletionProvider, req CompletionRequest) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return provider.Complete(callCtx, req)
}

func (s *ChatService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.callTimeout)
}

// persistExchange writes the user turn then the assistant turn. Failures are
// logged only: the answer has already been produced and is still returned.
func (s *ChatService) persistExchange(ctx context.Context, key store.ConversationKey, question, answer string, mode store.InteractionType, log *zap.Logger) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	if _, err := s.history.Append(callCtx, key, store.RoleUser, question, mode); err != nil {
		log.Error("failed to store user turn", zap.Error(err))
		return
	}
	if _, err := s.history.Append(callCtx, key, store.RoleAssistant, answer, mode); err != nil {
		log.Error("failed to store assistant turn", zap.Error(err))
	}
}

func (s *ChatService) loadHistory(ctx context.Context, key store.ConversationKey, log *zap.Logger) []store.Turn {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	turns, err := s.history.GetHistory(callCtx, key)
	if err != nil {
		log.Warn("failed to load history, proceeding without it", zap.Error(err))
		return nil
	}
	return turns
}

func lastTurns(turns []store.Turn, n int) []store.Turn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

func toChatMessages(turns []store.Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, ChatMessage{Role: t.Role, Content: t.Content})
	}
	return msgs
}

// ClearHistory deletes every turn for key. Clearing an empty conversation succeeds.
func (s *ChatService) ClearHistory(ctx context.Context, key store.ConversationKey) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.history.Clear(ctx, key); err != nil {
		return fmt.Errorf("failed to clear conversation: %w", err)
	}
	s.logger.Info("conversation cleared",
		zap.String("student_id", key.StudentID),
		zap.String("assignment_id", key.AssignmentID))
	return nil
}

func (s *ChatService) History(ctx context.Context, key store.ConversationKey) ([]store.Turn, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	turns, err := s.history.GetHistory(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return turns, nil
}

func (s *ChatService) VideoSuggestions(ctx context.Context, key store.ConversationKey) ([]store.VideoSuggestion, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	suggestions, err := s.history.ListVideoSuggestions(ctx, key, MaxListedSuggestions)
	if err != nil {
		return nil, fmt.Errorf("failed to load video suggestions: %w", err)
	}
	return suggestions, nil
}

func validateKey(key store.ConversationKey) error {
	if strings.TrimSpace(key.StudentID) == "" || strings.TrimSpace(key.AssignmentID) == "" {
		return fmt.Errorf("student_id and assignment_id are required: %w", ErrInvalidArgument)
	}
	return nil
}
