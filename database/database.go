package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	connectTimeout    = 15 * time.Second
	disconnectTimeout = 10 * time.Second
)

// DB holds the client and the two collections the API reads and writes.
type DB struct {
	Client *mongo.Client
	Users  *mongo.Collection
	Posts  *mongo.Collection
}

// Connect dials MongoDB and pings it before returning.
func Connect(ctx context.Context, uri, name string) (*DB, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := client.Database(name)
	return &DB{
		Client: client,
		Users:  db.Collection("users"),
		Posts:  db.Collection("posts"),
	}, nil
}

// ConnectWithRetry makes up to attempts connection attempts, pausing
// between failures.
func ConnectWithRetry(ctx context.Context, uri, name string, attempts int, pause time.Duration) (*DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := Connect(ctx, uri, name)
		if err == nil {
			return db, nil
		}
		lastErr = err
		log.Printf("MongoDB connection attempt %d failed: %v", i, err)
		if i < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pause):
			}
		}
	}
	return nil, lastErr
}

// EnsureIndexes creates the uniqueness constraints the stores rely on:
// one account per email, and googleId unique only where present.
func (d *DB) EnsureIndexes(ctx context.Context) error {
	_, err := d.Users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "googleId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("googleId_unique"),
		},
	})
	if err != nil {
		return fmt.Errorf("user indexes: %w", err)
	}
	_, err = d.Posts.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "tags", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("post indexes: %w", err)
	}
	return nil
}

func (d *DB) Disconnect() error {
	if d == nil || d.Client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()

	if err := d.Client.Disconnect(ctx); err != nil {
		return err
	}
	log.Println("Disconnected from MongoDB")
	return nil
}
