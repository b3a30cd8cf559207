package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	"github.com/thevijaykgupta/VaaniYantra/internal/providers/asr"
	"github.com/thevijaykgupta/VaaniYantra/internal/providers/translate"
	"github.com/thevijaykgupta/VaaniYantra/internal/storage"
	"github.com/thevijaykgupta/VaaniYantra/internal/utils"
)

// TranscriptStore is the persistence port: append a record, get back the
// stored form.
type TranscriptStore interface {
	Append(ctx context.Context, t *models.Transcript) (*models.Transcript, error)
}

// ChunkJournal is the optional per-chunk processing ledger. Entries are keyed
// by session id and seq, not room id: seq restarts at 1 for every session
// incarnation, so room-keyed entries from an earlier producer would collide
// with (and be overwritten by) a reconnecting one. Failures are logged and
// never change the pipeline outcome.
type ChunkJournal interface {
	InsertChunk(ctx context.Context, c *models.ChunkLog) error
	UpdateResult(ctx context.Context, sessionID string, seq int64, status string, segments int, language string) error
}

// Pipeline drives one audio chunk through ASR, per-segment translation,
// persistence and broadcast, under the room's work slot.
type Pipeline struct {
	Sessions   *SessionStore
	Registry   *Registry
	ASR        asr.Provider
	Translator translate.Provider
	Store      TranscriptStore

	// optional collaborators
	Journal ChunkJournal
	Archive storage.Uploader

	Log *logrus.Logger
}

// HandleChunk processes one chunk synchronously: it waits for the room's work
// slot, runs the pipeline and releases the slot on every exit path. Chunks
// for the same room therefore execute in strict submission order; chunks for
// different rooms run freely in parallel.
func (p *Pipeline) HandleChunk(ctx context.Context, roomID string, chunk []byte) {
	sess := p.Sessions.Get(roomID)
	sess.AcquireWork()
	defer sess.ReleaseWork()
	p.Process(ctx, sess, chunk)
}

// Process runs the pipeline for a chunk. The caller must hold sess's work
// slot and pass the session the chunk was dispatched under: looking the room
// up again here would resurrect a session the store already evicted, and pin
// a fresh producer's session with this stale chunk's language. Nothing
// escapes: every stage failure is contained here so the connection read loop
// never sees it.
func (p *Pipeline) Process(ctx context.Context, sess *Session, chunk []byte) {
	roomID := sess.RoomID()
	log := p.Log.WithFields(logrus.Fields{"room_id": roomID, "bytes": len(chunk)})

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("chunk pipeline panicked")
		}
	}()

	seq := sess.NextSeq()
	log = log.WithField("chunk_seq", seq)
	start := time.Now()

	p.journalInsert(ctx, sess, seq, len(chunk))
	p.archiveChunk(ctx, roomID, seq, chunk)

	hint, _ := sess.PinnedLanguage()
	segments, detected, err := p.ASR.Transcribe(ctx, chunk, hint)
	if err != nil {
		log.WithError(err).Error("asr failed, dropping chunk")
		p.journalUpdate(ctx, sess, seq, "failed", 0, hint)
		p.courtesyError(roomID, "transcription failed")
		return
	}
	sess.PinLanguage(detected)

	// Nobody listening: the transcription already established the pinned
	// language, but translating and persisting for an unobserved room is
	// wasted work. See DESIGN.md for the history implications.
	if !p.Registry.HasConnection(roomID) && !p.Registry.HasConnection(ViewerTopic(roomID)) {
		log.Debug("no connection registered, skipping translate/persist/broadcast")
		p.journalUpdate(ctx, sess, seq, "skipped", len(segments), detected)
		return
	}

	src := detected
	if src == "" {
		src = "en"
	}
	target := sess.TargetLanguage()

	stored := 0
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}

		translation, terr := p.Translator.Translate(ctx, seg.Text, src, target)
		if terr != nil {
			// degrade, never abort the segment
			log.WithError(terr).Warn("translation failed, storing empty translation")
			translation = ""
		}

		meta, _ := json.Marshal(map[string]float64{"start": seg.Start, "end": seg.End})
		rec := &models.Transcript{
			ID:               uuid.NewString(),
			RoomID:           roomID,
			Speaker:          models.SpeakerAuto,
			Text:             seg.Text,
			Translation:      translation,
			DetectedLanguage: detected,
			Metadata:         datatypes.JSON(meta),
			CreatedAt:        time.Now().UTC(),
		}

		saved, perr := p.Store.Append(ctx, rec)
		if perr != nil {
			entry := log.WithError(perr)
			if utils.IsCode(perr, utils.CodeInvalidArgument) {
				entry.Warn("segment rejected by store, continuing with next segment")
			} else {
				entry.Error("persist failed, continuing with next segment")
			}
			continue
		}
		stored++

		p.BroadcastTranscript(saved)
	}

	p.journalUpdate(ctx, sess, seq, "done", stored, detected)
	log.WithFields(logrus.Fields{
		"segments":   len(segments),
		"stored":     stored,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Info("chunk processed")
}

// BroadcastTranscript fans a stored record out to the room's producer socket
// and its viewer socket.
func (p *Pipeline) BroadcastTranscript(t *models.Transcript) {
	payload, err := json.Marshal(map[string]any{
		"type":    "transcript",
		"payload": t,
	})
	if err != nil {
		p.Log.WithError(err).Error("transcript event marshal failed")
		return
	}
	p.Registry.Broadcast(t.RoomID, payload)
	p.Registry.Broadcast(ViewerTopic(t.RoomID), payload)
}

// courtesyError is best-effort: its absence must not be read as success.
func (p *Pipeline) courtesyError(roomID, msg string) {
	payload, _ := json.Marshal(map[string]string{"type": "error", "message": msg})
	p.Registry.Broadcast(roomID, payload)
}

func (p *Pipeline) journalInsert(ctx context.Context, sess *Session, seq int64, size int) {
	if p.Journal == nil {
		return
	}
	err := p.Journal.InsertChunk(ctx, &models.ChunkLog{
		SessionID: sess.ID(),
		RoomID:    sess.RoomID(),
		Seq:       seq,
		Bytes:     size,
		Status:    "pending",
	})
	if err != nil {
		p.Log.WithError(err).Warn("chunk journal insert failed")
	}
}

func (p *Pipeline) journalUpdate(ctx context.Context, sess *Session, seq int64, status string, segments int, language string) {
	if p.Journal == nil {
		return
	}
	if err := p.Journal.UpdateResult(ctx, sess.ID(), seq, status, segments, language); err != nil {
		p.Log.WithError(err).Warn("chunk journal update failed")
	}
}

func (p *Pipeline) archiveChunk(ctx context.Context, roomID string, seq int64, chunk []byte) {
	if p.Archive == nil {
		return
	}
	name := fmt.Sprintf("rooms/%s/chunk_%d.pcm", roomID, seq)
	if _, err := p.Archive.Upload(ctx, name, "application/octet-stream", bytes.NewReader(chunk)); err != nil {
		p.Log.WithError(err).WithField("object", name).Warn("chunk archive upload failed")
	}
}
