package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carelink/backend/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	usersCollection         = "users"
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
)

// MongoService is the document-store backend. SaveMessage issues two writes
// without a transaction, so a crash between them leaves the conversation
// pointing at the previous message.
type MongoService struct {
	client  *mongo.Client
	db      *mongo.Database
	Timeout time.Duration
}

// NewMongoService connects, pings and makes sure the indexes exist.
func NewMongoService(ctx context.Context, uri, database string, timeout time.Duration) (*MongoService, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoService{client: client, db: client.Database(database), Timeout: timeout}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and lookup indexes used by the queries below.
func (s *MongoService) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	indexes := map[string][]mongo.IndexModel{
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		conversationsCollection: {
			{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "last_message_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sent_at", Value: 1}}},
			{Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "is_read", Value: 1}, {Key: "sent_at", Value: -1}}},
		},
	}
	for name, idx := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}
	return nil
}

func (s *MongoService) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoService) users() *mongo.Collection         { return s.db.Collection(usersCollection) }
func (s *MongoService) conversations() *mongo.Collection { return s.db.Collection(conversationsCollection) }
func (s *MongoService) messages() *mongo.Collection      { return s.db.Collection(messagesCollection) }

func translateMongo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

func (s *MongoService) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	user.EnsureID()
	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	_, err := s.users().InsertOne(ctx, user)
	return translateMongo(err)
}

func (s *MongoService) findUser(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var user models.User
	if err := s.users().FindOne(ctx, filter).Decode(&user); err != nil {
		return nil, translateMongo(err)
	}
	return &user, nil
}

func (s *MongoService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

func (s *MongoService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

func (s *MongoService) UpdateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	user.UpdatedAt = time.Now()
	res, err := s.users().ReplaceOne(ctx, bson.M{"_id": user.ID}, user)
	if err != nil {
		return translateMongo(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoService) FindConversationByPair(ctx context.Context, a, b string) (*models.Conversation, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	// $all + $size matches the exact set regardless of stored order.
	filter := bson.M{"participants": bson.M{"$all": bson.A{a, b}, "$size": 2}}
	var conv models.Conversation
	if err := s.conversations().FindOne(ctx, filter).Decode(&conv); err != nil {
		return nil, translateMongo(err)
	}
	return &conv, nil
}

func (s *MongoService) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	conv.EnsureID()
	_, err := s.conversations().InsertOne(ctx, conv)
	return translateMongo(err)
}

func (s *MongoService) ListConversationsForUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})
	cursor, err := s.conversations().Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Conversation{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RecentConversationsPipeline joins each of userID's conversations with its last
// message and the other participant's public profile. Output documents decode
// into models.ConversationSummary.
func RecentConversationsPipeline(userID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"participants": userID}}},
		{{Key: "$lookup", Value: bson.M{
			"from":         messagesCollection,
			"localField":   "last_message",
			"foreignField": "_id",
			"as":           "last_message",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$last_message", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from": usersCollection,
			"let":  bson.M{"participants": "$participants"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$in": bson.A{"$_id", "$$participants"}},
					bson.M{"$ne": bson.A{"$_id", userID}},
				}}}},
				bson.M{"$project": bson.M{"_id": 1, "name": 1, "email": 1}},
			},
			"as": "user",
		}}},
		{{Key: "$unwind", Value: "$user"}},
		{{Key: "$sort", Value: bson.D{{Key: "last_message_at", Value: -1}}}},
		{{Key: "$project", Value: bson.M{
			"_id":             1,
			"participants":    1,
			"last_message_at": 1,
			"last_message":    1,
			"user":            1,
		}}},
	}
}

// RecentConversations joins the last message and the counterpart server side.
func (s *MongoService) RecentConversations(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	cursor, err := s.conversations().Aggregate(ctx, RecentConversationsPipeline(userID))
	if err != nil {
		return nil, err
	}
	out := []models.ConversationSummary{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoService) SaveMessage(ctx context.Context, msg *models.Message) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	msg.EnsureID()
	if _, err := s.messages().InsertOne(ctx, msg); err != nil {
		return translateMongo(err)
	}

	res, err := s.conversations().UpdateByID(ctx, msg.ConversationID, bson.M{"$set": bson.M{
		"last_message":    msg.ID,
		"last_message_at": msg.SentAt,
		"updated_at":      time.Now(),
	}})
	if err != nil {
		return fmt.Errorf("update conversation %s: %w", msg.ConversationID, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoService) GetMessageByID(ctx context.Context, id string) (*models.Message, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	var msg models.Message
	if err := s.messages().FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, translateMongo(err)
	}
	return &msg, nil
}

func (s *MongoService) UpdateMessage(ctx context.Context, msg *models.Message) error {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	res, err := s.messages().UpdateByID(ctx, msg.ID, bson.M{"$set": bson.M{
		"is_read": msg.IsRead,
		"read_at": msg.ReadAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoService) findMessages(ctx context.Context, filter bson.M, sentAtOrder int) ([]models.Message, error) {
	ctx, cancel := withTimeout(ctx, s.Timeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "sent_at", Value: sentAtOrder}})
	cursor, err := s.messages().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	out := []models.Message{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoService) ListMessagesByConversation(ctx context.Context, conversationID string) ([]models.Message, error) {
	return s.findMessages(ctx, bson.M{"conversation_id": conversationID}, 1)
}

func (s *MongoService) ListUnreadMessages(ctx context.Context, recipientID string) ([]models.Message, error) {
	return s.findMessages(ctx, bson.M{"recipient_id": recipientID, "is_read": false}, -1)
}
