package postgres

import (
	"context"
	"errors"

	"github.com/thevijaykgupta/VaaniYantra/internal/models"
	"github.com/thevijaykgupta/VaaniYantra/internal/utils"
	"gorm.io/gorm"
)

type TranscriptRepo interface {
	Insert(ctx context.Context, t *models.Transcript) error
	ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Transcript, error)
	GetByID(ctx context.Context, id string) (*models.Transcript, error)
}

type transcriptRepo struct {
	db *gorm.DB
}

func NewTranscriptRepo(db *gorm.DB) TranscriptRepo {
	return &transcriptRepo{db: db}
}

func (r *transcriptRepo) Insert(ctx context.Context, t *models.Transcript) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *transcriptRepo) ListByRoom(ctx context.Context, roomID string, limit int) ([]models.Transcript, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []models.Transcript
	err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *transcriptRepo) GetByID(ctx context.Context, id string) (*models.Transcript, error) {
	var row models.Transcript
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
