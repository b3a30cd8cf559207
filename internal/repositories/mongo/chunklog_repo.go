package mongo

import (
	"context"
	"time"

	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const journalTTL = 24 * time.Hour

type ChunkLogRepository interface {
	InsertChunk(ctx context.Context, c *models.ChunkLog) error
	UpdateResult(ctx context.Context, sessionID string, seq int64, status string, segments int, language string) error
	ListByRoom(ctx context.Context, roomID string, limit int64) ([]models.ChunkLog, error)
}

type chunkLogRepo struct {
	col *mongo.Collection
}

func NewChunkLogRepo(db *mongo.Database) ChunkLogRepository {
	return &chunkLogRepo{col: db.Collection("chunk_log")}
}

func (r *chunkLogRepo) InsertChunk(ctx context.Context, c *models.ChunkLog) error {
	now := time.Now().UTC()
	if c.Timestamp.IsZero() {
		c.Timestamp = now
	}
	if c.ExpiresAt.IsZero() {
		c.ExpiresAt = now.Add(journalTTL)
	}
	_, err := r.col.InsertOne(ctx, c)
	return err
}

// UpdateResult filters on session id, not room id, so a reconnected
// producer's seq 1 can never touch the previous session's seq 1 document.
func (r *chunkLogRepo) UpdateResult(ctx context.Context, sessionID string, seq int64, status string, segments int, language string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "seq": seq},
		bson.M{"$set": bson.M{
			"status":   status,
			"segments": segments,
			"language": language,
		}},
	)
	return err
}

func (r *chunkLogRepo) ListByRoom(ctx context.Context, roomID string, limit int64) ([]models.ChunkLog, error) {
	if limit <= 0 {
		limit = 200
	}

	cur, err := r.col.Find(ctx,
		bson.M{"room_id": roomID},
		options.Find().
			SetSort(bson.D{{Key: "seq", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ChunkLog
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
