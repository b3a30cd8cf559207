package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	journal := MongoDatabase().Collection("chunk_log")
	_, err := journal.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// TTL: journal entries expire at ExpiresAt
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		// one entry per chunk; keyed by session incarnation because seq
		// restarts at 1 when a room's session is recreated
		{
			Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().
				SetName("uniq_session_seq").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("by_room_ts"),
		},
	})
	return err
}
