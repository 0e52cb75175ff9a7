package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/property/domain"
	"github.com/smallbiznis/rentbook/pkg/db/option"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, property *domain.Property) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO properties (id, slug, address, details, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		property.ID,
		property.Slug,
		property.Address,
		property.Details,
		property.IsActive,
		property.CreatedAt,
		property.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Property, error) {
	var property domain.Property
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, address, details, is_active, created_at, updated_at
		 FROM properties WHERE id = ?`,
		id,
	).Scan(&property).Error
	if err != nil {
		return nil, err
	}
	if property.ID == 0 {
		return nil, nil
	}
	return &property, nil
}

func (r *repo) FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Property, error) {
	var property domain.Property
	err := db.WithContext(ctx).Raw(
		`SELECT id, slug, address, details, is_active, created_at, updated_at
		 FROM properties WHERE slug = ?`,
		slug,
	).Scan(&property).Error
	if err != nil {
		return nil, err
	}
	if property.ID == 0 {
		return nil, nil
	}
	return &property, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPropertyFilter, page pagination.Pagination) ([]*domain.Property, error) {
	var properties []*domain.Property
	stmt := db.WithContext(ctx).Model(&domain.Property{})
	if filter.Active != nil {
		stmt = stmt.Where("is_active = ?", *filter.Active)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where("(LOWER(address) LIKE ? OR LOWER(details) LIKE ?)", like, like)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&properties).Error
	if err != nil {
		return nil, err
	}
	return properties, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, property *domain.Property) error {
	return db.WithContext(ctx).Exec(
		`UPDATE properties SET address = ?, details = ?, is_active = ?, updated_at = ? WHERE id = ?`,
		property.Address,
		property.Details,
		property.IsActive,
		property.UpdatedAt,
		property.ID,
	).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM properties WHERE id = ?`, id).Error
}

func (r *repo) CountTenancies(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tenancies WHERE property_id = ?`,
		id,
	).Scan(&count).Error
	return count, err
}

func (r *repo) EndActiveTenancies(ctx context.Context, db *gorm.DB, id snowflake.ID, endDate time.Time, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tenancies SET end_date = ?, status = 'terminated', updated_at = ?
		 WHERE property_id = ? AND status = 'active'`,
		endDate,
		now,
		id,
	)
	return res.RowsAffected, res.Error
}
