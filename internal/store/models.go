package store

import (
	"context"
	"time"
)

// MaxHistoryTurns caps how many turns GetHistory returns for one conversation.
const MaxHistoryTurns = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type InteractionType string

const (
	InteractionGreeting     InteractionType = "greeting"
	InteractionAIResponse   InteractionType = "ai_response"
	InteractionUserQuestion InteractionType = "user_question"
)

// Valid reports whether t is one of the known interaction types.
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionGreeting, InteractionAIResponse, InteractionUserQuestion:
		return true
	}
	return false
}

// ConversationKey scopes every history operation to one student and one assignment.
type ConversationKey struct {
	StudentID    string `json:"student_id" bson:"student_id"`
	AssignmentID string `json:"assignment_id" bson:"assignment_id"`
}

type Turn struct {
	ID              string          `json:"id"`
	StudentID       string          `json:"student_id"`
	AssignmentID    string          `json:"assignment_id"`
	Role            Role            `json:"role"`
	Content         string          `json:"content"`
	InteractionType InteractionType `json:"interaction_type"`
	CreatedAt       time.Time       `json:"created_at"`
}

type VideoLink struct {
	Title     string `json:"title" bson:"title"`
	URL       string `json:"url" bson:"url"`
	Thumbnail string `json:"thumbnail" bson:"thumbnail"`
}

// VideoSuggestion is a set of videos found for one question, kept so the
// frontend can list them again later.
type VideoSuggestion struct {
	ID           string      `json:"id"`
	StudentID    string      `json:"student_id"`
	AssignmentID string      `json:"assignment_id"`
	Question     string      `json:"question"`
	Query        string      `json:"query"`
	Videos       []VideoLink `json:"video_links"`
	CreatedAt    time.Time   `json:"created_at"`
}

// HistoryStore persists conversation turns and suggested videos.
type HistoryStore interface {
	// GetHistory returns the most recent MaxHistoryTurns turns for key, oldest first.
	GetHistory(ctx context.Context, key ConversationKey) ([]Turn, error)
	Append(ctx context.Context, key ConversationKey, role Role, content string, interactionType InteractionType) (*Turn, error)
	Clear(ctx context.Context, key ConversationKey) error

	SaveVideoSuggestion(ctx context.Context, suggestion *VideoSuggestion) error
	// ListVideoSuggestions returns suggestions for key, newest first.
	ListVideoSuggestions(ctx context.Context, key ConversationKey, limit int) ([]VideoSuggestion, error)

	Close() error
}
