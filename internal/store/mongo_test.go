package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// These tests need a running MongoDB. Set MONGODB_TEST_URI to run them.
func newMongoTestStore(t *testing.T) *MongoStore {
	t.Helper()
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s, err := NewMongoStore(ctx, uri, "assignment_helper_test_"+uuid.NewString()[:8], zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		s.Close()
	})
	return s
}

func TestMongoHistoryRoundTrip(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	_, err := s.Append(ctx, key, RoleUser, "A", InteractionAIResponse)
	require.NoError(t, err)
	_, err = s.Append(ctx, key, RoleAssistant, "B", InteractionAIResponse)
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "A", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)

	require.NoError(t, s.Clear(ctx, key))
	require.NoError(t, s.Clear(ctx, key))
	history, err = s.GetHistory(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMongoVideoSuggestions(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}

	require.NoError(t, s.SaveVideoSuggestion(ctx, &VideoSuggestion{
		StudentID: key.StudentID, AssignmentID: key.AssignmentID, Question: "q1", Query: "q1",
		Videos: []VideoLink{{Title: "v1", URL: "u1", Thumbnail: "t1"}},
	}))
	require.NoError(t, s.SaveVideoSuggestion(ctx, &VideoSuggestion{
		StudentID: key.StudentID, AssignmentID: key.AssignmentID, Question: "q2", Query: "q2",
		Videos: []VideoLink{{Title: "v2", URL: "u2", Thumbnail: "t2"}},
	}))

	got, err := s.ListVideoSuggestions(ctx, key, 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q2", got[0].Question)
	assert.Equal(t, "v2", got[0].Videos[0].Title)
}

func TestMongoHistoryOrdersByCreationTime(t *testing.T) {
	s := newMongoTestStore(t)
	ctx := context.Background()
	key := ConversationKey{StudentID: "s1", AssignmentID: "a1"}
	base := time.Now().UTC().Truncate(time.Millisecond)

	// Another replica can hand out a larger ObjectID for an earlier write.
	docs := []turnDoc{
		{ID: bson.NewObjectIDFromTimestamp(base.Add(time.Hour)), Role: string(RoleUser), Content: "first", CreatedAt: base},
		{ID: bson.NewObjectIDFromTimestamp(base), Role: string(RoleAssistant), Content: "second", CreatedAt: base.Add(time.Second)},
	}
	for _, doc := range docs {
		doc.StudentID, doc.AssignmentID = key.StudentID, key.AssignmentID
		doc.InteractionType = string(InteractionAIResponse)
		require.NoError(t, s.insertTurn(ctx, doc))
	}

	history, err := s.GetHistory(ctx, key)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "first", history[0].Content)
	assert.Equal(t, "second", history[1].Content)
}

func TestNewestFirstSortsByCreationThenID(t *testing.T) {
	require.Len(t, newestFirst, 2)
	assert.Equal(t, "created_at", newestFirst[0].Key)
	assert.Equal(t, "_id", newestFirst[1].Key)
}
