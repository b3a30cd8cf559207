package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChunkLog is a short-lived journal entry for one processed audio chunk.
// It exists for debugging live sessions and is expired by a TTL index.
// Entries are unique per (session_id, seq), not per room: seq restarts at 1
// whenever a room's session is recreated, while journal rows from the
// previous session live until their TTL.
type ChunkLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	RoomID    string             `bson:"room_id" json:"room_id"`
	Seq       int64              `bson:"seq" json:"seq"`

	Bytes    int    `bson:"bytes" json:"bytes"`
	Status   string `bson:"status" json:"status"` // pending|done|failed|skipped
	Segments int    `bson:"segments,omitempty" json:"segments,omitempty"`
	Language string `bson:"language,omitempty" json:"language,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
}
