package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Property struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Slug      string       `gorm:"type:varchar(160);not null;uniqueIndex" json:"slug"`
	Address   string       `gorm:"type:text;not null" json:"address"`
	Details   string       `gorm:"type:text;not null;default:''" json:"details"`
	IsActive  bool         `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Property) TableName() string { return "properties" }

type DeleteMode string

const (
	DeleteModeSoft DeleteMode = "soft"
	DeleteModeHard DeleteMode = "hard"
)

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}
