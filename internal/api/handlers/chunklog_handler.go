package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	mongorepo "github.com/thevijaykgupta/VaaniYantra/internal/repositories/mongo"
	"github.com/thevijaykgupta/VaaniYantra/internal/utils"
)

// ChunkLogHandler exposes the chunk journal for live-session debugging. Only
// mounted when the journal store is configured.
type ChunkLogHandler struct {
	journal mongorepo.ChunkLogRepository
}

func NewChunkLogHandler(journal mongorepo.ChunkLogRepository) *ChunkLogHandler {
	return &ChunkLogHandler{journal: journal}
}

// GET /rooms/:room_id/chunks?limit=<n>
func (h *ChunkLogHandler) List(c *gin.Context) {
	roomID := c.Param("room_id")

	var limit int64 = 200
	if v := c.Query("limit"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "ChunkLogHandler.List", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	rows, err := h.journal.ListByRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, "ChunkLogHandler.List", "failed to list chunk journal", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}
