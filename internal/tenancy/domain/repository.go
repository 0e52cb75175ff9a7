package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListTenancyFilter struct {
	PropertyID snowflake.ID
	TenantID   snowflake.ID
	Status     Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tenancy *Tenancy) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Tenancy, error)
	FindActiveByProperty(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (*Tenancy, error)
	List(ctx context.Context, db *gorm.DB, filter ListTenancyFilter) ([]*Tenancy, error)
	// ListActive pages active tenancies in id order starting after afterID.
	ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*Tenancy, error)
	Update(ctx context.Context, db *gorm.DB, tenancy *Tenancy) error
}
