package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/thevijaykgupta/VaaniYantra/internal/cache"
	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	pgrepo "github.com/thevijaykgupta/VaaniYantra/internal/repositories/postgres"
	"github.com/thevijaykgupta/VaaniYantra/internal/utils"
)

const (
	recentListLimit = 50
	recentListTTL   = 30 * time.Second
)

type TranscriptService interface {
	Append(ctx context.Context, t *models.Transcript) (*models.Transcript, error)
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Transcript, error)
	GetByID(ctx context.Context, id string) (*models.Transcript, error)
}

type transcriptService struct {
	transcripts pgrepo.TranscriptRepo
	cache       cache.Cache
}

// NewTranscriptService wraps the repo with a recent-page cache. cache may be
// nil; reads then always hit postgres.
func NewTranscriptService(transcripts pgrepo.TranscriptRepo, c cache.Cache) TranscriptService {
	return &transcriptService{transcripts: transcripts, cache: c}
}

func recentKey(roomID string) string { return "transcripts:recent:" + roomID }

func (s *transcriptService) Append(ctx context.Context, t *models.Transcript) (*models.Transcript, error) {
	const op = "TranscriptService.Append"

	if t == nil || t.RoomID == "" || t.Text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "room_id and text are required", nil)
	}

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Speaker == "" {
		t.Speaker = models.SpeakerAuto
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	if err := s.transcripts.Insert(ctx, t); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to insert transcript", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, recentKey(t.RoomID))
	}
	return t, nil
}

func (s *transcriptService) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Transcript, error) {
	const op = "TranscriptService.ListByRoom"

	if roomID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "room_id is required", nil)
	}
	if limit <= 0 {
		limit = recentListLimit
	}

	// only the default page is cached; odd limits go straight through
	cacheable := s.cache != nil && limit == recentListLimit
	if cacheable {
		var cached []models.Transcript
		if hit, err := s.cache.GetJSON(ctx, recentKey(roomID), &cached); err == nil && hit {
			return cached, nil
		}
	}

	rows, err := s.transcripts.ListByRoom(ctx, roomID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcripts", err)
	}

	if cacheable {
		_ = s.cache.SetJSON(ctx, recentKey(roomID), rows, recentListTTL)
	}
	return rows, nil
}

func (s *transcriptService) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	const op = "TranscriptService.GetByID"

	if id == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "id is required", nil)
	}

	row, err := s.transcripts.GetByID(ctx, id)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "transcript not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load transcript", err)
	}
	return row, nil
}
