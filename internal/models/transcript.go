package models

import (
	"time"

	"gorm.io/datatypes"
)

// SpeakerAuto labels rows produced by the streaming pipeline, which does not
// perform diarization.
const SpeakerAuto = "speaker_auto"

// Transcript is one persisted ASR segment with its translation. Translation
// is always a defined string; it is "" when the translation stage failed.
type Transcript struct {
	ID               string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	RoomID           string         `gorm:"column:room_id;type:varchar(64);index" json:"room_id"`
	Speaker          string         `gorm:"column:speaker;type:varchar(32)" json:"speaker"`
	Text             string         `gorm:"column:text;type:text" json:"text"`
	Translation      string         `gorm:"column:translation;type:text;not null;default:''" json:"translation"`
	DetectedLanguage string         `gorm:"column:detected_language;type:varchar(16)" json:"detected_language"`
	Metadata         datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time      `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (Transcript) TableName() string { return "transcripts" }
