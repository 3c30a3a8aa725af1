package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectTimeout = 10 * time.Second

// MongoSettings are the connection parameters for the flight and notification store
type MongoSettings struct {
	URI      string
	Database string
	Username string
	Password string
}

// OpenMongo connects, pings and returns the configured database
func OpenMongo(ctx context.Context, s MongoSettings) (*mongo.Client, *mongo.Database, error) {
	clientOptions := options.Client().ApplyURI(s.URI)
	if s.Username != "" && s.Password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: s.Username,
			Password: s.Password,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, client.Database(s.Database), nil
}
