package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListPropertyFilter struct {
	Active *bool
	Query  string
	Cursor *Cursor
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, property *Property) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Property, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Property, error)
	List(ctx context.Context, db *gorm.DB, filter ListPropertyFilter, page pagination.Pagination) ([]*Property, error)
	Update(ctx context.Context, db *gorm.DB, property *Property) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	CountTenancies(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	EndActiveTenancies(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time, now time.Time) (int64, error)
}
