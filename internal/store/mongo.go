package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

const (
	turnsCollection  = "chat_messages"
	videosCollection = "video_links"
)

// newestFirst orders documents by creation time. ObjectIDs only break ties:
// they are ordered within one process but not across replicas.
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// MongoStore keeps turns and video suggestions in MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

type turnDoc struct {
	ID              bson.ObjectID `bson:"_id"`
	StudentID       string        `bson:"student_id"`
	AssignmentID    string        `bson:"assignment_id"`
	Role            string        `bson:"role"`
	Content         string        `bson:"content"`
	InteractionType string        `bson:"interaction_type"`
	CreatedAt       time.Time     `bson:"created_at"`
}

type videoSuggestionDoc struct {
	ID           bson.ObjectID `bson:"_id"`
	StudentID    string        `bson:"student_id"`
	AssignmentID string        `bson:"assignment_id"`
	Question     string        `bson:"question"`
	Query        string        `bson:"query"`
	VideoLinks   []VideoLink   `bson:"video_links"`
	CreatedAt    time.Time     `bson:"created_at"`
}

func NewMongoStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	store := &MongoStore{client: client, db: client.Database(database), logger: logger}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	keyIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "student_id", Value: 1}, {Key: "assignment_id", Value: 1}, {Key: "created_at", Value: -1}, {Key: "_id", Value: -1}},
	}
	if _, err := s.db.Collection(turnsCollection).Indexes().CreateOne(ctx, keyIndex); err != nil {
		return err
	}
	_, err := s.db.Collection(videosCollection).Indexes().CreateOne(ctx, keyIndex)
	return err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func keyFilter(key ConversationKey) bson.M {
	return bson.M{"student_id": key.StudentID, "assignment_id": key.AssignmentID}
}

func (s *MongoStore) Append(ctx context.Context, key ConversationKey, role Role, content string, interactionType InteractionType) (*Turn, error) {
	doc := turnDoc{
		ID:              bson.NewObjectID(),
		StudentID:       key.StudentID,
		AssignmentID:    key.AssignmentID,
		Role:            string(role),
		Content:         content,
		InteractionType: string(interactionType),
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.insertTurn(ctx, doc); err != nil {
		return nil, err
	}
	turn := doc.toTurn()
	return &turn, nil
}

func (s *MongoStore) insertTurn(ctx context.Context, doc turnDoc) error {
	if _, err := s.db.Collection(turnsCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (s *MongoStore) GetHistory(ctx context.Context, key ConversationKey) ([]Turn, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(MaxHistoryTurns)

	cursor, err := s.db.Collection(turnsCollection).Find(ctx, keyFilter(key), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	var docs []turnDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode turns: %w", err)
	}

	turns := make([]Turn, len(docs))
	for i, doc := range docs {
		turns[len(docs)-1-i] = doc.toTurn()
	}
	return turns, nil
}

func (s *MongoStore) Clear(ctx context.Context, key ConversationKey) error {
	res, err := s.db.Collection(turnsCollection).DeleteMany(ctx, keyFilter(key))
	if err != nil {
		return fmt.Errorf("failed to delete turns: %w", err)
	}
	s.logger.Debug("cleared conversation",
		zap.String("student_id", key.StudentID),
		zap.String("assignment_id", key.AssignmentID),
		zap.Int64("deleted", res.DeletedCount))
	return nil
}

func (s *MongoStore) SaveVideoSuggestion(ctx context.Context, suggestion *VideoSuggestion) error {
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = time.Now().UTC()
	}
	doc := videoSuggestionDoc{
		ID:           bson.NewObjectID(),
		StudentID:    suggestion.StudentID,
		AssignmentID: suggestion.AssignmentID,
		Question:     suggestion.Question,
		Query:        suggestion.Query,
		VideoLinks:   suggestion.Videos,
		CreatedAt:    suggestion.CreatedAt,
	}
	if _, err := s.db.Collection(videosCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert video suggestion: %w", err)
	}
	suggestion.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) ListVideoSuggestions(ctx context.Context, key ConversationKey, limit int) ([]VideoSuggestion, error) {
	opts := options.Find().
		SetSort(newestFirst).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(videosCollection).Find(ctx, keyFilter(key), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query video suggestions: %w", err)
	}
	var docs []videoSuggestionDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode video suggestions: %w", err)
	}

	suggestions := make([]VideoSuggestion, 0, len(docs))
	for _, doc := range docs {
		suggestions = append(suggestions, VideoSuggestion{
			ID:           doc.ID.Hex(),
			StudentID:    doc.StudentID,
			AssignmentID: doc.AssignmentID,
			Question:     doc.Question,
			Query:        doc.Query,
			Videos:       doc.VideoLinks,
			CreatedAt:    doc.CreatedAt,
		})
	}
	return suggestions, nil
}

func (d turnDoc) toTurn() Turn {
	return Turn{
		ID:              d.ID.Hex(),
		StudentID:       d.StudentID,
		AssignmentID:    d.AssignmentID,
		Role:            Role(d.Role),
		Content:         d.Content,
		InteractionType: InteractionType(d.InteractionType),
		CreatedAt:       d.CreatedAt,
	}
}
