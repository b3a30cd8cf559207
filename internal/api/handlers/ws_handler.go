package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/thevijaykgupta/VaaniYantra/internal/stream"
	"github.com/thevijaykgupta/VaaniYantra/internal/workers"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

type WSHandler struct {
	registry   *stream.Registry
	sessions   *stream.SessionStore
	pool       *workers.ChunkWorkerPool
	chunkBytes int
	log        *logrus.Logger
	upgrader   websocket.Upgrader

	// baseCtx outlives individual requests: an in-flight chunk pipeline runs
	// to completion even when its producer disconnects mid-chunk.
	baseCtx context.Context
}

func NewWSHandler(baseCtx context.Context, registry *stream.Registry, sessions *stream.SessionStore, pool *workers.ChunkWorkerPool, chunkBytes int, log *logrus.Logger) *WSHandler {
	return &WSHandler{
		registry:   registry,
		sessions:   sessions,
		pool:       pool,
		chunkBytes: chunkBytes,
		log:        log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
		baseCtx: baseCtx,
	}
}

// wsConn serializes writes to one socket and adapts it to stream.Conn.
type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) WriteMessage(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.SetWriteDeadline(time.Now().Add(writeWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) writeJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.WriteMessage(b)
}

func (w *wsConn) Close(code int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.c.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(writeWait))
	return w.c.Close()
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

type wsControlMsg struct {
	Type           string `json:"type"`
	Data           string `json:"data"`            // type=audio: base64 PCM16
	TargetLanguage string `json:"target_language"` // type=config
}

// AudioWS is the producer endpoint: GET /ws/audio/:room_id. Binary frames are
// raw PCM16 mono little-endian; text frames carry control messages.
func (h *WSHandler) AudioWS(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, APIError{Code: "INVALID_ARGUMENT", Message: "missing room_id"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote the response
		return
	}

	wc := &wsConn{c: conn}
	h.registry.Connect(roomID, wc)
	_ = wc.writeJSON(map[string]string{"type": "connected", "room_id": roomID})

	log := h.log.WithField("room_id", roomID)
	log.Info("audio producer connected")

	stopPing := h.keepalive(conn, wc)
	defer stopPing()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		switch mt {
		case websocket.BinaryMessage:
			h.ingestAudio(roomID, data)
		case websocket.TextMessage:
			h.handleControl(roomID, wc, data)
		}
	}

	if h.registry.Disconnect(roomID, wc) {
		// this producer still owned the room: end its session so the next
		// connection starts with a fresh buffer and an unpinned language
		h.sessions.Remove(roomID)
	}
	_ = conn.Close()
	log.Info("audio producer disconnected")
}

// TranscriptsWS is the read-only viewer endpoint: GET /ws/transcripts/:room_id.
func (h *WSHandler) TranscriptsWS(c *gin.Context) {
	roomID := c.Param("room_id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, APIError{Code: "INVALID_ARGUMENT", Message: "missing room_id"})
		return
	}
	topic := stream.ViewerTopic(roomID)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	wc := &wsConn{c: conn}
	h.registry.Connect(topic, wc)
	_ = wc.writeJSON(map[string]string{"type": "connected", "room_id": roomID})

	stopPing := h.keepalive(conn, wc)
	defer stopPing()

	for {
		mt, data, rerr := conn.ReadMessage()
		if rerr != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		// viewers only ever send pings; everything else is ignored
		if mt == websocket.TextMessage {
			var msg wsControlMsg
			if json.Unmarshal(data, &msg) == nil && msg.Type == "ping" {
				_ = wc.writeJSON(map[string]string{"type": "pong"})
			}
		}
	}

	h.registry.Disconnect(topic, wc)
	_ = conn.Close()
}

// ingestAudio appends a frame to the room's buffer and dispatches every full
// chunk that the append completed. Dispatch blocks while the room's previous
// chunk is still in flight; that stall is the intended backpressure.
func (h *WSHandler) ingestAudio(roomID string, pcm []byte) {
	sess := h.sessions.Get(roomID)
	sess.Append(pcm)
	for {
		chunk, ok := sess.TryExtract(h.chunkBytes)
		if !ok {
			return
		}
		h.pool.Dispatch(h.baseCtx, roomID, chunk)
	}
}

func (h *WSHandler) handleControl(roomID string, wc *wsConn, data []byte) {
	var msg wsControlMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return // malformed text frames are ignored, no error surfaced
	}

	switch msg.Type {
	case "audio":
		// legacy producers send base64 PCM in a text frame
		pcm, err := base64.StdEncoding.DecodeString(msg.Data)
		if err != nil {
			h.log.WithField("room_id", roomID).WithError(err).Debug("bad base64 audio frame ignored")
			return
		}
		h.ingestAudio(roomID, pcm)

	case "config":
		h.sessions.Get(roomID).SetTargetLanguage(msg.TargetLanguage)

	case "ping":
		_ = wc.writeJSON(map[string]string{"type": "pong"})
	}
	// unrecognized shapes fall through silently
}

// keepalive arms the read deadline, refreshes it on pongs and pings the peer
// on an interval. An idle-but-alive peer answers the ping and the deadline
// keeps sliding; only a dead one times the read loop out.
func (h *WSHandler) keepalive(conn *websocket.Conn, wc *wsConn) (stop func()) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(pingPeriod)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				if wc.ping() != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}
