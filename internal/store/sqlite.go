package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewSQLiteStore(dataSourceName string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteStore{db: db, logger: logger}
	if err = store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS chat_turns (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        student_id TEXT NOT NULL,
        assignment_id TEXT NOT NULL,
        role TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
        content TEXT NOT NULL,
        interaction_type TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_chat_turns_key ON chat_turns (student_id, assignment_id, seq);

    CREATE TABLE IF NOT EXISTS video_suggestions (
        seq INTEGER PRIMARY KEY AUTOINCREMENT,
        id TEXT UNIQUE NOT NULL, -- UUID
        student_id TEXT NOT NULL,
        assignment_id TEXT NOT NULL,
        question TEXT NOT NULL,
        query TEXT NOT NULL,
        videos_json TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );

    CREATE INDEX IF NOT EXISTS idx_video_suggestions_key ON video_suggestions (student_id, assignment_id, seq);
    `
	_, err := s.db.Exec(schema)
	return err
}

// Turn methods
func (s *SQLiteStore) Append(ctx context.Context, key ConversationKey, role Role, content string, interactionType InteractionType) (*Turn, error) {
	turn := &Turn{
		ID:              uuid.NewString(),
		StudentID:       key.StudentID,
		AssignmentID:    key.AssignmentID,
		Role:            role,
		Content:         content,
		InteractionType: interactionType,
		CreatedAt:       time.Now().UTC(),
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO chat_turns (id, student_id, assignment_id, role, content, interaction_type, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare turn insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, turn.ID, turn.StudentID, turn.AssignmentID, string(turn.Role), turn.Content, string(turn.InteractionType), turn.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to execute turn insert: %w", err)
	}
	return turn, nil
}

func (s *SQLiteStore) GetHistory(ctx context.Context, key ConversationKey) ([]Turn, error) {
	query := `
        SELECT id, student_id, assignment_id, role, content, interaction_type, created_at
        FROM chat_turns
        WHERE student_id = ? AND assignment_id = ?
        ORDER BY seq DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, key.StudentID, key.AssignmentID, MaxHistoryTurns)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var turn Turn
		var role, interactionType string
		if err := rows.Scan(&turn.ID, &turn.StudentID, &turn.AssignmentID, &role, &turn.Content, &interactionType, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		turn.Role = Role(role)
		turn.InteractionType = InteractionType(interactionType)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}

	// Rows came back newest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, key ConversationKey) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM chat_turns WHERE student_id = ? AND assignment_id = ?", key.StudentID, key.AssignmentID)
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	affected, _ := res.RowsAffected()
	s.logger.Debug("cleared conversation",
		zap.String("student_id", key.StudentID),
		zap.String("assignment_id", key.AssignmentID),
		zap.Int64("deleted", affected))
	return nil
}

// VideoSuggestion methods
func (s *SQLiteStore) SaveVideoSuggestion(ctx context.Context, suggestion *VideoSuggestion) error {
	videosBytes, err := json.Marshal(suggestion.Videos)
	if err != nil {
		return fmt.Errorf("failed to marshal video links: %w", err)
	}
	if suggestion.ID == "" {
		suggestion.ID = uuid.NewString()
	}
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now().UTC()
	}

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO video_suggestions (id, student_id, assignment_id, question, query, videos_json, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("failed to prepare video suggestion insert: %w", err)
	}
	defer stmt.Close()

	_, err = stmt.ExecContext(ctx, suggestion.ID, suggestion.StudentID, suggestion.AssignmentID, suggestion.Question, suggestion.Query, string(videosBytes), suggestion.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to execute video suggestion insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListVideoSuggestions(ctx context.Context, key ConversationKey, limit int) ([]VideoSuggestion, error) {
	query := `
        SELECT id, student_id, assignment_id, question, query, videos_json, created_at
        FROM video_suggestions
        WHERE student_id = ? AND assignment_id = ?
        ORDER BY seq DESC
        LIMIT ?
    `
	rows, err := s.db.QueryContext(ctx, query, key.StudentID, key.AssignmentID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query video suggestions: %w", err)
	}
	defer rows.Close()

	suggestions := []VideoSuggestion{}
	for rows.Next() {
		var sug VideoSuggestion
		var videosJSON string
		if err := rows.Scan(&sug.ID, &sug.StudentID, &sug.AssignmentID, &sug.Question, &sug.Query, &videosJSON, &sug.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video suggestion row: %w", err)
		}
		if err := json.Unmarshal([]byte(videosJSON), &sug.Videos); err != nil {
			s.logger.Warn("failed to unmarshal stored video links",
				zap.String("suggestion_id", sug.ID), zap.Error(err))
			sug.Videos = nil
		}
		suggestions = append(suggestions, sug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate video suggestion rows: %w", err)
	}
	return suggestions, nil
}
