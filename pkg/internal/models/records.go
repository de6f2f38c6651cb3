package models

import (
	"time"

	"gorm.io/datatypes"
)

// DocumentRecord is the row backing every collection in the postgres adapter.
type DocumentRecord struct {
	Collection string            `json:"collection" gorm:"primaryKey;size:64"`
	ID         string            `json:"id" gorm:"primaryKey;size:64"`
	Data       datatypes.JSONMap `json:"data" gorm:"type:jsonb;not null"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}
