package models

import (
	"time"

	"gorm.io/datatypes"
)

// DefaultFranchiseId is used for orders captured without a franchise.
const DefaultFranchiseId = "default"

// OrderDocument is a raw order as written by the order-capture system.
// Data is a flat field mapping; nothing in it is schema-checked.
type OrderDocument struct {
	ID          string            `gorm:"primaryKey;size:128" json:"id"`
	FranchiseId *string           `gorm:"size:64;index" json:"franchise_id"`
	Data        datatypes.JSONMap `json:"data"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// FeedbackDocument is a raw customer review. A nil FranchiseId means the feedback is
// unscoped and is attributed by time only.
type FeedbackDocument struct {
	ID          string            `gorm:"primaryKey;size:128" json:"id"`
	FranchiseId *string           `gorm:"size:64;index" json:"franchise_id"`
	Data        datatypes.JSONMap `json:"data"`
	CreatedAt   time.Time         `gorm:"autoCreateTime" json:"created_at"`
}
