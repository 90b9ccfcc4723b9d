package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var ignoreGenerated = cmpopts.IgnoreFields(Turn{}, "ID", "CreatedAt")

func TestAppendAndGetHistoryKeepsOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	_, err := s.Append(ctx, key, RoleUser, "A", InteractionAIResponse)
	require.NoError(t, err)
	_, err = s.Append(ctx, key, RoleAssistant, "B", InteractionAIResponse)
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, key)
	require.NoError(t, err)

	want := []Turn{
		{StudentID: "s1", AssignmentID: "a1", Role: RoleUser, Content: "A", InteractionType: InteractionAIResponse},
		{StudentID: "s1", AssignmentID: "a1", Role: RoleAssistant, Content: "B", InteractionType: InteractionAIResponse},
	}
	if diff := cmp.Diff(want, history, ignoreGenerated); diff != "" {
		t.Errorf("history mismatch (-want +got):\n%s", diff)
	}
	for _, turn := range history {
		assert.NotEmpty(t, turn.ID)
		assert.False(t, turn.CreatedAt.IsZero())
	}
}

func TestGetHistoryUnknownKeyIsEmpty(t *testing.T) {
	s := newTestStore(t)

	history, err := s.GetHistory(context.Background(), ConversationKey{StudentID: "nobody", AssignmentID: "none"})
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestGetHistoryCapsToMostRecent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	for i := 0; i < MaxHistoryTurns+5; i++ {
		_, err := s.Append(ctx, key, RoleUser, fmt.Sprintf("msg-%d", i), InteractionAIResponse)
		require.NoError(t, err)
	}

	history, err := s.GetHistory(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, MaxHistoryTurns)
	assert.Equal(t, "msg-5", history[0].Content)
	assert.Equal(t, fmt.Sprintf("msg-%d", MaxHistoryTurns+4), history[len(history)-1].Content)
}

func TestHistoryIsScopedToKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := ConversationKey{StudentID: "s1", AssignmentID: "a1"}
	b := ConversationKey{StudentID: "s1", AssignmentID: "a2"}
	c := ConversationKey{StudentID: "s2", AssignmentID: "a1"}

	_, err := s.Append(ctx, a, RoleUser, "for a", InteractionAIResponse)
	require.NoError(t, err)
	_, err = s.Append(ctx, b, RoleUser, "for b", InteractionAIResponse)
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, a)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "for a", history[0].Content)

	history, err = s.GetHistory(ctx, c)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, s.Clear(ctx, a))
	history, err = s.GetHistory(ctx, b)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestClearIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	_, err := s.Append(ctx, key, RoleUser, "hello", InteractionGreeting)
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx, key))
	history, err := s.GetHistory(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, s.Clear(ctx, key))
	history, err = s.GetHistory(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestVideoSuggestionsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	first := &VideoSuggestion{
		StudentID: key.StudentID, AssignmentID: key.AssignmentID,
		Question: "q1", Query: "linear equations",
		Videos: []VideoLink{{Title: "Linear equations", URL: "https://www.youtube.com/watch?v=1", Thumbnail: "t1"}},
	}
	second := &VideoSuggestion{
		StudentID: key.StudentID, AssignmentID: key.AssignmentID,
		Question: "q2", Query: "quadratic formula",
		Videos: []VideoLink{{Title: "Quadratics", URL: "https://www.youtube.com/watch?v=2", Thumbnail: "t2"}},
	}
	require.NoError(t, s.SaveVideoSuggestion(ctx, first))
	require.NoError(t, s.SaveVideoSuggestion(ctx, second))
	assert.NotEmpty(t, first.ID)

	got, err := s.ListVideoSuggestions(ctx, key, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Question)
	assert.Equal(t, second.Videos, got[0].Videos)
	assert.Equal(t, "q1", got[1].Question)

	got, err = s.ListVideoSuggestions(ctx, key, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.ListVideoSuggestions(ctx, ConversationKey{StudentID: "s2", AssignmentID: "a1"}, 50)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInteractionTypeValid(t *testing.T) {
	assert.True(t, InteractionGreeting.Valid())
	assert.True(t, InteractionAIResponse.Valid())
	assert.True(t, InteractionUserQuestion.Valid())
	assert.False(t, InteractionType("invalid_value").Valid())
	assert.False(t, InteractionType("").Valid())
}

func TestNewSQLiteStoreClosesOnOpenFailure(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dsn := filepath.Join(t.TempDir(), "missing-dir", "history.db")
	s, err := NewSQLiteStore(dsn, zap.NewNop())
	require.Error(t, err)
	assert.Nil(t, s)
}
