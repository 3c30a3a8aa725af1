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

const flightRecordCollection = "flight_records"

// MongoFlightRecordRepository implements FlightRecordRepository
type MongoFlightRecordRepository struct {
	collection *mongo.Collection
}

// NewMongoFlightRecordRepository creates a new flight record repository
func NewMongoFlightRecordRepository(db *mongo.Database) *MongoFlightRecordRepository {
	return &MongoFlightRecordRepository{
		collection: db.Collection(flightRecordCollection),
	}
}

var _ repository.FlightRecordRepository = (*MongoFlightRecordRepository)(nil)

// EnsureIndexes creates the unique (user, flight, date) index and the status index used by the tracker
func (r *MongoFlightRecordRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "flightNumber", Value: 1}, {Key: "flightDate", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_user_flight_date"),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "updatedAt", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("create flight record indexes: %w", err)
	}
	return nil
}

// FindByID finds a flight record by id
func (r *MongoFlightRecordRepository) FindByID(ctx context.Context, id string) (*entity.FlightRecord, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FindByKey finds the record of one user's flight on one date
func (r *MongoFlightRecordRepository) FindByKey(ctx context.Context, userID, flightNumber, flightDate string) (*entity.FlightRecord, error) {
	return r.findOne(ctx, bson.M{
		"userId":       userID,
		"flightNumber": flightNumber,
		"flightDate":   flightDate,
	})
}

func (r *MongoFlightRecordRepository) findOne(ctx context.Context, filter bson.M) (*entity.FlightRecord, error) {
	var record entity.FlightRecord
	err := r.collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByUser returns every flight of a user, oldest first
func (r *MongoFlightRecordRepository) FindByUser(ctx context.Context, userID string) ([]*entity.FlightRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

// FindForRefresh returns up to limit pollable flights, least recently updated first
func (r *MongoFlightRecordRepository) FindForRefresh(ctx context.Context, estimatedSince string, limit int) ([]*entity.FlightRecord, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"status": entity.FlightTracking},
		bson.M{
			"status":     entity.FlightCompleted,
			"estimated":  true,
			"flightDate": bson.M{"$gte": estimatedSince},
		},
	}}
	opts := options.Find().
		SetSort(bson.D{{Key: "updatedAt", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *MongoFlightRecordRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*entity.FlightRecord, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*entity.FlightRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Create inserts a new record and returns entity.ErrDuplicateFlight when the key is taken
func (r *MongoFlightRecordRepository) Create(ctx context.Context, record *entity.FlightRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = primitive.NewObjectID().Hex()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return entity.ErrDuplicateFlight
		}
		return err
	}
	return nil
}

// Update persists the tracker-owned fields of an existing record
func (r *MongoFlightRecordRepository) Update(ctx context.Context, record *entity.FlightRecord) error {
	record.UpdatedAt = time.Now().UTC()

	set := bson.M{
		"delayMinutes": record.DelayMinutes,
		"compensation": record.Compensation,
		"status":       record.Status,
		"estimated":    record.Estimated,
		"updatedAt":    record.UpdatedAt,
	}
	if record.CompletedAt != nil {
		set["completedAt"] = record.CompletedAt
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": record.ID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return entity.ErrNotFound
	}
	return nil
}
