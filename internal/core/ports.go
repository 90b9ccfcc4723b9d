package core

import (
	"context"
	"errors"

	"github.com/kiraleos/assignment-helper/internal/store"
)

var (
	// ErrNotFound is returned when a referenced assignment does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed requests.
	ErrInvalidArgument = errors.New("invalid argument")
)

// Assignment is the read-only grounding context for a conversation.
type Assignment struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	FullText string `json:"full_text"`
}

// AssignmentSummary is one row of an assignment listing.
type AssignmentSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Subject string `json:"subject"`
	Grade   string `json:"grade"`
	Score   string `json:"score"`
	DueDate string `json:"due_date"`
}

type AssignmentLookup interface {
	GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error)
}

// AssignmentCatalog is an AssignmentLookup that can also list assignments,
// optionally filtered by teacher.
type AssignmentCatalog interface {
	AssignmentLookup
	ListAssignments(ctx context.Context, teacherID string) ([]AssignmentSummary, error)
}

type ChatMessage struct {
	Role    store.Role
	Content string
}

type CompletionRequest struct {
	SystemPrompt string
	History      []ChatMessage
	UserMessage  string
	Temperature  float32
	MaxTokens    int32
}

type CompletionProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// VideoSearcher may return an empty result; that is not an error.
type VideoSearcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]store.VideoLink, error)
}
