package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Matthias0x44/RyUnfair/internal/domain/entity"
	"github.com/Matthias0x44/RyUnfair/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	notificationCollection = "notifications"

	staleClaimReason = "claim expired before delivery was confirmed"
)

// MongoNotificationRepository implements NotificationRepository
type MongoNotificationRepository struct {
	collection *mongo.Collection
}

// NewMongoNotificationRepository creates a new notification repository
func NewMongoNotificationRepository(db *mongo.Database) *MongoNotificationRepository {
	return &MongoNotificationRepository{
		collection: db.Collection(notificationCollection),
	}
}

var _ repository.NotificationRepository = (*MongoNotificationRepository)(nil)

// EnsureIndexes creates the dedupe and due-selection indexes.
// dedupeKey is unset on cancellation, so the sparse unique index only
// covers non-cancelled records.
func (r *MongoNotificationRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "dedupeKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_dedupe_key"),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledFor", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "flightId", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create notification indexes: %w", err)
	}
	return nil
}

// Create inserts a pending notification
func (r *MongoNotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	now := time.Now().UTC()
	if n.ID == "" {
		n.ID = primitive.NewObjectID().Hex()
	}
	if n.Status == "" {
		n.Status = entity.NotificationPending
	}
	if n.DedupeKey == "" {
		flightID := ""
		if n.FlightID != nil {
			flightID = *n.FlightID
		}
		n.DedupeKey = entity.DedupeKeyFor(n.UserID, flightID, n.Kind)
	}
	n.CreatedAt = now
	n.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, n); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", entity.ErrDuplicateSchedule, n.DedupeKey)
		}
		return err
	}
	return nil
}

// FindByID finds a notification by id
func (r *MongoNotificationRepository) FindByID(ctx context.Context, id string) (*entity.Notification, error) {
	var n entity.Notification
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&n)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// FindDue returns pending notifications scheduled at or before now that sort after the cursor
func (r *MongoNotificationRepository) FindDue(ctx context.Context, now time.Time, after *entity.DueCursor, limit int) ([]*entity.Notification, error) {
	filter := dueFilter(now, after)
	opts := options.Find().
		SetSort(bson.D{{Key: "scheduledFor", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func dueFilter(now time.Time, after *entity.DueCursor) bson.M {
	filter := bson.M{
		"status":       entity.NotificationPending,
		"scheduledFor": bson.M{"$lte": now},
	}
	if after != nil {
		filter["$or"] = bson.A{
			bson.M{"scheduledFor": bson.M{"$gt": after.ScheduledFor}},
			bson.M{"scheduledFor": after.ScheduledFor, "_id": bson.M{"$gt": after.ID}},
		}
	}
	return filter
}

func (r *MongoNotificationRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.Notification, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []*entity.Notification
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Claim atomically moves a pending notification to sending
func (r *MongoNotificationRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": entity.NotificationPending},
		bson.M{"$set": bson.M{
			"status":    entity.NotificationSending,
			"claimedAt": now,
			"updatedAt": now,
		}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

// MarkSent records a confirmed delivery. Repeating it is harmless.
func (r *MongoNotificationRepository) MarkSent(ctx context.Context, id, externalID string, sentAt time.Time) error {
	return r.finish(ctx, id, entity.NotificationSent, bson.M{
		"sentAt":     sentAt,
		"externalId": externalID,
		"updatedAt":  sentAt,
	})
}

// MarkFailed records a terminal delivery failure. Repeating it is harmless.
func (r *MongoNotificationRepository) MarkFailed(ctx context.Context, id, reason string, failedAt time.Time) error {
	return r.finish(ctx, id, entity.NotificationFailed, bson.M{
		"lastError": reason,
		"updatedAt": failedAt,
	})
}

func (r *MongoNotificationRepository) finish(ctx context.Context, id string, status entity.NotificationStatus, set bson.M) error {
	set["status"] = status
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": []entity.NotificationStatus{entity.NotificationSending, status}}},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: notification %s is not in flight", entity.ErrInvalidTransition, id)
	}
	return nil
}

// CancelPendingByUser cancels the user's pending notifications and frees their dedupe keys
func (r *MongoNotificationRepository) CancelPendingByUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	return r.cancelPending(ctx, bson.M{"userId": userID}, now)
}

// CancelPendingByFlight cancels the flight's pending notifications and frees their dedupe keys
func (r *MongoNotificationRepository) CancelPendingByFlight(ctx context.Context, flightID string, now time.Time) (int64, error) {
	return r.cancelPending(ctx, bson.M{"flightId": flightID}, now)
}

func (r *MongoNotificationRepository) cancelPending(ctx context.Context, filter bson.M, now time.Time) (int64, error) {
	filter["status"] = entity.NotificationPending
	result, err := r.collection.UpdateMany(ctx,
		filter,
		bson.M{
			"$set":   bson.M{"status": entity.NotificationCancelled, "updatedAt": now},
			"$unset": bson.M{"dedupeKey": ""},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// FailStaleClaims fails notifications left in sending by a run that never finished.
// They are not resent because the provider may already have accepted them.
func (r *MongoNotificationRepository) FailStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.collection.UpdateMany(ctx,
		bson.M{"status": entity.NotificationSending, "claimedAt": bson.M{"$lt": cutoff}},
		bson.M{"$set": bson.M{
			"status":    entity.NotificationFailed,
			"lastError": staleClaimReason,
			"updatedAt": time.Now().UTC(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// Requeue moves a failed notification back to pending, due immediately
func (r *MongoNotificationRepository) Requeue(ctx context.Context, id string, now time.Time) error {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": entity.NotificationFailed},
		bson.M{
			"$set":   bson.M{"status": entity.NotificationPending, "scheduledFor": now, "updatedAt": now},
			"$unset": bson.M{"lastError": "", "claimedAt": ""},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 1 {
		return nil
	}

	n, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: notification %s is %s, only failed notifications can be requeued",
		entity.ErrInvalidTransition, id, n.Status)
}
