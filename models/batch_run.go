package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus ist der Zustand eines Batch-Laufs.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// BatchRun speichert Zielmenge und Fortschritt eines Batch-Laufs, damit er fortgesetzt werden kann.
type BatchRun struct {
	ID        string    `json:"id" gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Operation string         `json:"operation" gorm:"index;not null"`
	TargetIDs datatypes.JSON `json:"target_ids" gorm:"type:jsonb"`
	Options   datatypes.JSON `json:"options,omitempty" gorm:"type:jsonb"`
	NextIndex int            `json:"next_index"`
	Status    RunStatus      `json:"status" gorm:"index;default:'running'"`
	Report    datatypes.JSON `json:"report,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (BatchRun) TableName() string {
	return "batch_runs"
}

// BeforeCreate vergibt die ID.
func (r *BatchRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// AllModels listet alle Modelle für die Auto-Migration.
func AllModels() []interface{} {
	return []interface{}{&Article{}, &ExternalLink{}, &LinkReplacement{}, &BatchRun{}}
}
