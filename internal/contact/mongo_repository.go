package contact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// CollectionName is the MongoDB collection holding contact messages
const CollectionName = "contact_messages"

type mongoMessage struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	Email     string    `bson:"email"`
	Message   string    `bson:"message"`
	Status    string    `bson:"status"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (d mongoMessage) toModel() Message {
	return Message{
		ID:        d.ID,
		Name:      d.Name,
		Email:     d.Email,
		Message:   d.Message,
		Status:    Status(d.Status),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MongoRepository handles contact message persistence in MongoDB
type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection(CollectionName)}
}

// newestFirst sorts by creation time, then by the time-ordered UUIDv7 id
var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// EnsureIndexes creates the index backing the newest-first listing
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    newestFirst,
			Options: options.Index().SetName("contact_messages_created_at"),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("contact_messages_status_created_at"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create contact_messages indexes: %w", err)
	}
	return nil
}

// Create inserts a new contact message
func (r *MongoRepository) Create(ctx context.Context, m *Message) error {
	doc := mongoMessage{
		ID:        m.ID,
		Name:      m.Name,
		Email:     m.Email,
		Message:   m.Message,
		Status:    string(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to create contact message: %w", err)
	}
	return nil
}

// List returns messages newest first
func (r *MongoRepository) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	opts = opts.normalized()

	filter := bson.D{}
	if opts.Status != "" {
		filter = append(filter, bson.E{Key: "status", Value: string(opts.Status)})
	}

	findOpts := options.Find().
		SetSort(newestFirst).
		SetLimit(int64(opts.Limit)).
		SetSkip(int64(opts.Offset))

	cursor, err := r.collection.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to list contact messages: %w", err)
	}

	var docs []mongoMessage
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode contact messages: %w", err)
	}

	messages := make([]Message, 0, len(docs))
	for _, d := range docs {
		messages = append(messages, d.toModel())
	}
	return messages, nil
}

// UpdateStatus sets the status of a message and returns the updated document.
// A message that already has the status is returned untouched.
func (r *MongoRepository) UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) (*Message, error) {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: string(status)},
		{Key: "updated_at", Value: updatedAt},
	}}}

	var doc mongoMessage
	err := r.collection.FindOneAndUpdate(ctx,
		bson.D{
			{Key: "_id", Value: id},
			{Key: "status", Value: bson.D{{Key: "$ne", Value: string(status)}}},
		},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// either missing or already in the requested status
		err = r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update contact message status: %w", err)
	}

	m := doc.toModel()
	return &m, nil
}
