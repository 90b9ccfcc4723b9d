package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kiraleos/assignment-helper/internal/core"
	"github.com/kiraleos/assignment-helper/internal/store"
	"github.com/kiraleos/assignment-helper/internal/utils"
	"go.uber.org/zap"
)

const (
	serviceName    = "AI Assignment Helper API"
	serviceVersion = "1.0.0"

	historyPreviewRunes = 200
)

type APIHandler struct {
	chatService *core.ChatService
	assignments core.AssignmentCatalog
	jwtSecret   string
	logger      *zap.Logger
}

func NewAPIHandler(cs *core.ChatService, assignments core.AssignmentCatalog, jwtSecret string, logger *zap.Logger) *APIHandler {
	return &APIHandler{chatService: cs, assignments: assignments, jwtSecret: jwtSecret, logger: logger}
}

type AskRequest struct {
	AssignmentID       string `json:"assignment_id"`
	StudentID          string `json:"student_id"`
	Question           string `json:"question"`
	InteractionType    string `json:"interaction_type"`
	PreviousAIResponse string `json:"previous_ai_response,omitempty"`
}

func (h *APIHandler) AskHandler(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if !h.authorizeStudent(w, r, req.StudentID) {
		return
	}

	resp, err := h.chatService.Ask(r.Context(), core.AskRequest{
		AssignmentID:       req.AssignmentID,
		StudentID:          req.StudentID,
		Question:           req.Question,
		InteractionType:    store.InteractionType(req.InteractionType),
		PreviousAIResponse: req.PreviousAIResponse,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type ClearRequest struct {
	StudentID    string `json:"student_id"`
	AssignmentID string `json:"assignment_id"`
}

// ClearHandler accepts the key as query parameters or as a JSON body.
func (h *APIHandler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	req := ClearRequest{
		StudentID:    r.URL.Query().Get("student_id"),
		AssignmentID: r.URL.Query().Get("assignment_id"),
	}
	if (req.StudentID == "" || req.AssignmentID == "") && r.Body != nil && r.Body != http.NoBody {
		var body ClearRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
		if req.StudentID == "" {
			req.StudentID = body.StudentID
		}
		if req.AssignmentID == "" {
			req.AssignmentID = body.AssignmentID
		}
	}
	if !h.authorizeStudent(w, r, req.StudentID) {
		return
	}

	key := store.ConversationKey{StudentID: req.StudentID, AssignmentID: req.AssignmentID}
	if err := h.chatService.ClearHistory(r.Context(), key); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Conversation cleared successfully",
		"student_id":    req.StudentID,
		"assignment_id": req.AssignmentID,
	})
}

type HistoryEntry struct {
	Role        store.Role `json:"role"`
	Message     string     `json:"message"`
	FullMessage string     `json:"full_message"`
}

type HistoryResponse struct {
	StudentID     string         `json:"student_id"`
	AssignmentID  string         `json:"assignment_id"`
	TotalMessages int            `json:"total_messages"`
	Conversation  []HistoryEntry `json:"conversation"`
}

func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	key := keyFromPath(r)
	if !h.authorizeStudent(w, r, key.StudentID) {
		return
	}

	turns, err := h.chatService.History(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	conversation := make([]HistoryEntry, 0, len(turns))
	for _, t := range turns {
		conversation = append(conversation, HistoryEntry{
			Role:        t.Role,
			Message:     utils.Truncate(t.Content, historyPreviewRunes),
			FullMessage: t.Content,
		})
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		StudentID:     key.StudentID,
		AssignmentID:  key.AssignmentID,
		TotalMessages: len(turns),
		Conversation:  conversation,
	})
}

type VideosResponse struct {
	StudentID    string                  `json:"student_id"`
	AssignmentID string                  `json:"assignment_id"`
	Total        int                     `json:"total"`
	Videos       []store.VideoSuggestion `json:"videos"`
}

func (h *APIHandler) VideosHandler(w http.ResponseWriter, r *http.Request) {
	key := keyFromPath(r)
	if !h.authorizeStudent(w, r, key.StudentID) {
		return
	}

	suggestions, err := h.chatService.VideoSuggestions(r.Context(), key)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if suggestions == nil {
		suggestions = []store.VideoSuggestion{}
	}
	writeJSON(w, http.StatusOK, VideosResponse{
		StudentID:    key.StudentID,
		AssignmentID: key.AssignmentID,
		Total:        len(suggestions),
		Videos:       suggestions,
	})
}

type AssignmentListResponse struct {
	Assignments []core.AssignmentSummary `json:"assignments"`
	Total       int                      `json:"total"`
}

func (h *APIHandler) ListAssignmentsHandler(w http.ResponseWriter, r *http.Request) {
	list, err := h.assignments.ListAssignments(r.Context(), r.URL.Query().Get("teacher_id"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if list == nil {
		list = []core.AssignmentSummary{}
	}
	writeJSON(w, http.StatusOK, AssignmentListResponse{Assignments: list, Total: len(list)})
}

func (h *APIHandler) GetAssignmentHandler(w http.ResponseWriter, r *http.Request) {
	assignment, err := h.assignments.GetAssignment(r.Context(), chi.URLParam(r, "assignmentID"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, assignment)
}

func (h *APIHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": serviceName,
		"status":  "running",
		"version": serviceVersion,
		"endpoints": map[string]string{
			"assignments": "/api/assignments",
			"chatbot":     "/api/chat or /api/chatbot/ask",
			"history":     "/api/chatbot/history/{student_id}/{assignment_id}",
			"videos":      "/api/chatbot/videos/{student_id}/{assignment_id}",
			"clear":       "/api/chatbot/clear",
		},
	})
}

func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func keyFromPath(r *http.Request) store.ConversationKey {
	return store.ConversationKey{
		StudentID:    chi.URLParam(r, "studentID"),
		AssignmentID: chi.URLParam(r, "assignmentID"),
	}
}

// writeServiceError maps core sentinel errors onto HTTP statuses. Assignments
// are the only thing core reports as missing.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "Assignment not found")
	case errors.Is(err, core.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "Not Found")
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "Method Not Allowed")
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": strings.TrimSpace(detail)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
