package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	"github.com/thevijaykgupta/VaaniYantra/internal/providers/asr"
	"github.com/thevijaykgupta/VaaniYantra/internal/stream"
	"github.com/thevijaykgupta/VaaniYantra/internal/workers"
)

// 16 kHz * 5 s * 2 bytes per sample
const testChunkBytes = 160000

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type countingASR struct {
	mu    sync.Mutex
	calls []string // hint per invocation
	done  chan struct{}
}

func (f *countingASR) Transcribe(_ context.Context, pcm []byte, hint string) ([]asr.Segment, string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, hint)
	f.mu.Unlock()
	if f.done != nil {
		f.done <- struct{}{}
	}
	return []asr.Segment{{End: 5, Text: "hello"}}, "hi", nil
}

func (f *countingASR) Close() error { return nil }

func (f *countingASR) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type captureTranslator struct {
	mu      sync.Mutex
	targets []string
}

func (f *captureTranslator) Translate(_ context.Context, text, _, target string) (string, error) {
	f.mu.Lock()
	f.targets = append(f.targets, target)
	f.mu.Unlock()
	return "T:" + text, nil
}

func (f *captureTranslator) Close() error { return nil }

type memStore struct {
	mu   sync.Mutex
	recs []*models.Transcript
}

func (f *memStore) Append(_ context.Context, t *models.Transcript) (*models.Transcript, error) {
	f.mu.Lock()
	f.recs = append(f.recs, t)
	f.mu.Unlock()
	return t, nil
}

type wsFixture struct {
	srv      *httptest.Server
	asr      *countingASR
	tr       *captureTranslator
	store    *memStore
	sessions *stream.SessionStore
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := testLogger()
	a := &countingASR{done: make(chan struct{}, 16)}
	tr := &captureTranslator{}
	st := &memStore{}

	registry := stream.NewRegistry(log)
	sessions := stream.NewSessionStore("en")
	pipeline := &stream.Pipeline{
		Sessions:   sessions,
		Registry:   registry,
		ASR:        a,
		Translator: tr,
		Store:      st,
		Log:        log,
	}
	pool := &workers.ChunkWorkerPool{Pipeline: pipeline, NumWorkers: 4, QueueSize: 8, Logger: log}
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("pool start: %v", err)
	}

	r := gin.New()
	h := NewWSHandler(context.Background(), registry, sessions, pool, testChunkBytes, log)
	r.GET("/ws/audio/:room_id", h.AudioWS)
	r.GET("/ws/transcripts/:room_id", h.TranscriptsWS)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &wsFixture{srv: srv, asr: a, tr: tr, store: st, sessions: sessions}
}

func (f *wsFixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readEvent(t *testing.T, c *websocket.Conn) map[string]any {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev map[string]any
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	return ev
}

func expectEvent(t *testing.T, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	ev := readEvent(t, c)
	if ev["type"] != typ {
		t.Fatalf("event type = %v, want %q (event: %v)", ev["type"], typ, ev)
	}
	return ev
}

func (f *wsFixture) awaitASR(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.asr.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for asr invocation %d of %d", i+1, n)
		}
	}
}

func TestAudioStreamEndToEnd(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "/ws/audio/r1")

	ev := expectEvent(t, c, "connected")
	if ev["room_id"] != "r1" {
		t.Fatalf("connected room_id = %v, want r1", ev["room_id"])
	}

	// one full chunk of zero samples => exactly one asr invocation
	if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	if got := f.asr.count(); got != 1 {
		t.Fatalf("asr invoked %d times after one chunk, want 1", got)
	}

	tev := expectEvent(t, c, "transcript")
	payload, _ := tev["payload"].(map[string]any)
	if payload["room_id"] != "r1" || payload["speaker"] != models.SpeakerAuto {
		t.Fatalf("unexpected transcript payload %v", payload)
	}
	if payload["translation"] != "T:hello" {
		t.Fatalf("translation = %v, want T:hello", payload["translation"])
	}

	// two chunks' worth in a single frame => exactly two more invocations
	if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, 2*testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 2)
	if got := f.asr.count(); got != 3 {
		t.Fatalf("asr invoked %d times total, want 3", got)
	}
	expectEvent(t, c, "transcript")
	expectEvent(t, c, "transcript")

	// first call unpinned, later calls hinted with the detected language
	f.asr.mu.Lock()
	defer f.asr.mu.Unlock()
	if f.asr.calls[0] != "" || f.asr.calls[1] != "hi" || f.asr.calls[2] != "hi" {
		t.Fatalf("asr hints = %v, want [\"\", \"hi\", \"hi\"]", f.asr.calls)
	}
}

func TestPartialFramesAccumulate(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c, "connected")

	// three frames summing to one chunk plus a 16-byte tail
	for _, n := range []int{70000, 70000, 20016} {
		if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, n)); err != nil {
			t.Fatal(err)
		}
	}
	f.awaitASR(t, 1)
	expectEvent(t, c, "transcript")
	if got := f.asr.count(); got != 1 {
		t.Fatalf("asr invoked %d times, want 1 (tail must stay buffered)", got)
	}
}

func TestPingPongAndUnknownFramesIgnored(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c, "connected")

	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	expectEvent(t, c, "pong")

	// malformed and unrecognized frames produce no reply and no disconnect
	_ = c.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
	_ = c.WriteMessage(websocket.TextMessage, []byte(`{"type":"mystery"}`))

	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatal(err)
	}
	expectEvent(t, c, "pong")
}

func TestConfigFrameSetsTargetLanguage(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c, "connected")

	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"type":"config","target_language":"fr"}`)); err != nil {
		t.Fatal(err)
	}
	if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	expectEvent(t, c, "transcript")

	f.tr.mu.Lock()
	defer f.tr.mu.Unlock()
	if len(f.tr.targets) != 1 || f.tr.targets[0] != "fr" {
		t.Fatalf("translator targets = %v, want [fr]", f.tr.targets)
	}
}

func TestLegacyBase64AudioFrame(t *testing.T) {
	f := newWSFixture(t)
	c := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c, "connected")

	b64 := base64.StdEncoding.EncodeToString(make([]byte, testChunkBytes))
	msg, _ := json.Marshal(map[string]string{"type": "audio", "data": b64})
	if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
		t.Fatal(err)
	}

	f.awaitASR(t, 1)
	expectEvent(t, c, "transcript")
}

func TestProducerReplacement(t *testing.T) {
	f := newWSFixture(t)

	first := f.dial(t, "/ws/audio/r1")
	expectEvent(t, first, "connected")

	second := f.dial(t, "/ws/audio/r1")
	expectEvent(t, second, "connected")

	// the superseded socket is closed by the server
	_ = first.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	// results now reach only the second connection
	if err := second.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	expectEvent(t, second, "transcript")
}

func TestViewerReceivesTranscripts(t *testing.T) {
	f := newWSFixture(t)

	viewer := f.dial(t, "/ws/transcripts/r1")
	expectEvent(t, viewer, "connected")

	producer := f.dial(t, "/ws/audio/r1")
	expectEvent(t, producer, "connected")

	if err := producer.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	expectEvent(t, viewer, "transcript")
}

func TestDisconnectTearsDownSession(t *testing.T) {
	f := newWSFixture(t)

	c := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c, "connected")
	if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	expectEvent(t, c, "transcript")

	c.Close()

	deadline := time.Now().Add(3 * time.Second)
	for f.sessions.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("session not evicted after producer disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// a returning producer starts unpinned
	c2 := f.dial(t, "/ws/audio/r1")
	expectEvent(t, c2, "connected")
	if err := c2.WriteMessage(websocket.BinaryMessage, make([]byte, testChunkBytes)); err != nil {
		t.Fatal(err)
	}
	f.awaitASR(t, 1)
	expectEvent(t, c2, "transcript")

	f.asr.mu.Lock()
	defer f.asr.mu.Unlock()
	last := f.asr.calls[len(f.asr.calls)-1]
	if last != "" {
		t.Fatalf("fresh session carried hint %q, want none", last)
	}
}
