package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Tenant struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;index" json:"name"`
	Phone     string       `gorm:"type:varchar(32);not null;default:''" json:"phone"`
	IDProof   string       `gorm:"column:id_proof;type:text;not null;default:''" json:"id_proof"`
	Notes     string       `gorm:"type:text;not null;default:''" json:"notes"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Tenant) TableName() string { return "tenants" }
