package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/thevijaykgupta/VaaniYantra/internal/api/handlers"
)

type Deps struct {
	Transcripts *handlers.TranscriptHandler
	WS          *handlers.WSHandler
	ChunkLog    *handlers.ChunkLogHandler // nil when the journal is disabled
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/health", handlers.Health)

	r.GET("/transcripts", d.Transcripts.List)
	r.GET("/transcripts/:id", d.Transcripts.Get)
	r.POST("/transcripts", d.Transcripts.Create)

	if d.ChunkLog != nil {
		r.GET("/rooms/:room_id/chunks", d.ChunkLog.List)
	}

	// WebSocket: one producer per room, plus a read-only transcript feed
	r.GET("/ws/audio/:room_id", d.WS.AudioWS)
	r.GET("/ws/transcripts/:room_id", d.WS.TranscriptsWS)
}
