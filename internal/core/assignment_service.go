package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AssignmentService fetches assignments from the LMS REST API and turns them
// into grounding text for the tutor.
type AssignmentService struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type namedRef struct {
	Name string `json:"name"`
}

type assignmentPayload struct {
	ID            string          `json:"_id"`
	Title         string          `json:"title"`
	Subject       *namedRef       `json:"subject"`
	Grade         *namedRef       `json:"grade"`
	Instructions  string          `json:"instructions"`
	Score         json.RawMessage `json:"score"`
	DueDate       string          `json:"dueDate"`
	ExtractedText string          `json:"extractedText"`
}

func NewAssignmentService(baseURL string, timeout time.Duration, logger *zap.Logger) *AssignmentService {
	return &AssignmentService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (s *AssignmentService) GetAssignment(ctx context.Context, assignmentID string) (*Assignment, error) {
	if strings.TrimSpace(assignmentID) == "" {
		return nil, fmt.Errorf("assignment id is required: %w", ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("%s/assignments/%s", s.baseURL, url.PathEscape(assignmentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assignment request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assignment API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("assignment %s: %w", assignmentID, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("assignment API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payload, err := decodeAssignment(resp.Body)
	if err != nil {
		return nil, err
	}

	title := payload.Title
	if title == "" {
		title = "Untitled Assignment"
	}
	fullText := buildFullText(payload)
	s.logger.Debug("assignment loaded",
		zap.String("assignment_id", assignmentID),
		zap.String("title", title),
		zap.Int("full_text_chars", len(fullText)))

	return &Assignment{ID: assignmentID, Title: title, FullText: fullText}, nil
}

// ListAssignments returns the LMS assignment list, filtered by teacherID when
// it is not empty.
func (s *AssignmentService) ListAssignments(ctx context.Context, teacherID string) ([]AssignmentSummary, error) {
	endpoint := s.baseURL + "/assignments"
	if teacherID != "" {
		endpoint += "?" + url.Values{"teacher_id": {teacherID}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build assignment list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("assignment API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("assignment API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	payloads, err := decodeAssignmentList(resp.Body)
	if err != nil {
		return nil, err
	}
	summaries := make([]AssignmentSummary, 0, len(payloads))
	for _, p := range payloads {
		summaries = append(summaries, p.summary())
	}
	s.logger.Debug("assignments listed",
		zap.String("teacher_id", teacherID),
		zap.Int("count", len(summaries)))
	return summaries, nil
}

// decodeAssignmentList accepts {"assignments": [...]}, {"data": [...]} and bare arrays.
func decodeAssignmentList(r io.Reader) ([]assignmentPayload, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment list: %w", err)
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope struct {
			Assignments json.RawMessage `json:"assignments"`
			Data        json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode assignment list: %w", err)
		}
		switch {
		case len(envelope.Assignments) > 0:
			trimmed = envelope.Assignments
		case len(envelope.Data) > 0:
			trimmed = envelope.Data
		default:
			return []assignmentPayload{}, nil
		}
	}

	var payloads []assignmentPayload
	if err := json.Unmarshal(trimmed, &payloads); err != nil {
		return nil, fmt.Errorf("failed to decode assignment list: %w", err)
	}
	return payloads, nil
}

func (p assignmentPayload) summary() AssignmentSummary {
	sum := AssignmentSummary{
		ID:      p.ID,
		Title:   p.Title,
		Score:   scoreString(p.Score),
		DueDate: p.DueDate,
	}
	if p.Subject != nil {
		sum.Subject = p.Subject.Name
	}
	if p.Grade != nil {
		sum.Grade = p.Grade.Name
	}
	return sum
}

// decodeAssignment accepts both {"data": {...}} envelopes and bare objects.
func decodeAssignment(r io.Reader) (*assignmentPayload, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read assignment response: %w", err)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode assignment response: %w", err)
	}
	if len(envelope.Data) > 0 && envelope.Data[0] == '{' {
		body = envelope.Data
	}

	var payload assignmentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode assignment: %w", err)
	}
	return &payload, nil
}

func buildFullText(p *assignmentPayload) string {
	var subject, grade string
	if p.Subject != nil {
		subject = p.Subject.Name
	}
	if p.Grade != nil {
		grade = p.Grade.Name
	}

	parts := []string{
		"Assignment Title: " + p.Title,
		"Subject: " + subject,
		"Grade: " + grade,
		"Total Score: " + scoreString(p.Score),
		"Due Date: " + p.DueDate,
		"",
		"=== INSTRUCTIONS ===",
		p.Instructions,
	}
	if strings.TrimSpace(p.ExtractedText) != "" {
		parts = append(parts, "", "=== ASSIGNMENT CONTENT ===", p.ExtractedText)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func scoreString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
