package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	"github.com/thevijaykgupta/VaaniYantra/internal/services"
	"github.com/thevijaykgupta/VaaniYantra/internal/stream"
	"github.com/thevijaykgupta/VaaniYantra/internal/utils"
)

const defaultRoomID = "default"

type TranscriptHandler struct {
	transcripts services.TranscriptService
	pipeline    *stream.Pipeline
}

func NewTranscriptHandler(transcripts services.TranscriptService, pipeline *stream.Pipeline) *TranscriptHandler {
	return &TranscriptHandler{transcripts: transcripts, pipeline: pipeline}
}

// GET /transcripts?room_id=<id>&limit=<n>
func (h *TranscriptHandler) List(c *gin.Context) {
	roomID := c.DefaultQuery("room_id", defaultRoomID)

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "TranscriptHandler.List", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	rows, err := h.transcripts.ListByRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if rows == nil {
		rows = []models.Transcript{}
	}
	c.JSON(http.StatusOK, gin.H{"items": rows})
}

// GET /transcripts/:id
func (h *TranscriptHandler) Get(c *gin.Context) {
	row, err := h.transcripts.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

type createTranscriptReq struct {
	RoomID      string `json:"room_id" binding:"required"`
	Speaker     string `json:"speaker"`
	Text        string `json:"text" binding:"required"`
	Translation string `json:"translation"`
}

// POST /transcripts inserts out-of-band, then notifies the room's live
// sockets the same way the streaming pipeline does.
func (h *TranscriptHandler) Create(c *gin.Context) {
	var req createTranscriptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "TranscriptHandler.Create", "room_id and text are required", err))
		return
	}

	rec := &models.Transcript{
		RoomID:      req.RoomID,
		Speaker:     req.Speaker,
		Text:        req.Text,
		Translation: req.Translation,
	}

	stored, err := h.transcripts.Append(c.Request.Context(), rec)
	if err != nil {
		writeError(c, err)
		return
	}

	h.pipeline.BroadcastTranscript(stored)
	c.JSON(http.StatusOK, stored)
}

// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339Nano),
	})
}
