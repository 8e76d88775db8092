package repositories

import (
	"context"
	"time"

	"github.com/anonto42/campus-connect/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTypingRepository implements TypingRepository for MongoDB. Stale rows are also
// expired server-side by a TTL index on updated_at.
type MongoTypingRepository struct {
	collection *mongo.Collection
}

// NewMongoTypingRepository creates a new MongoTypingRepository
func NewMongoTypingRepository(db *mongo.Database) *MongoTypingRepository {
	return &MongoTypingRepository{collection: db.Collection("typing_statuses")}
}

// EnsureIndexes creates the pair key and the retention TTL index
func (r *MongoTypingRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "receiver_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(retention.Seconds())),
		},
	})
	return err
}

func (r *MongoTypingRepository) Upsert(ctx context.Context, status *models.TypingStatus) error {
	filter := bson.M{"user_id": status.UserID, "receiver_id": status.ReceiverID}
	update := bson.M{"$set": bson.M{"is_typing": status.IsTyping, "updated_at": status.UpdatedAt}}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

func (r *MongoTypingRepository) Get(ctx context.Context, userID, receiverID string) (*models.TypingStatus, error) {
	var status models.TypingStatus
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID, "receiver_id": receiverID}).Decode(&status)
	if err != nil {
		return nil, translate(err)
	}
	return &status, nil
}

func (r *MongoTypingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"updated_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
