package persistence

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const connectTimeout = 10 * time.Second

// NewMongoClient connects to the load store. Captured milestones are written
// with majority acknowledgement so a failover never loses an accepted write.
func NewMongoClient(ctx context.Context, uri, username, password string) (*mongo.Client, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName("fleettrack-service").
		SetServerSelectionTimeout(connectTimeout).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxPoolSize(20)

	if username != "" && password != "" {
		clientOptions.SetAuth(options.Credential{
			Username: username,
			Password: password,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo primary: %w", err)
	}

	return client, nil
}

// GetDatabase returns the database holding the loads collection
func GetDatabase(client *mongo.Client, name string) *mongo.Database {
	return client.Database(name)
}
