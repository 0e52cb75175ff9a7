package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/rentbook/internal/tenancy/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const tenancyColumns = `id, property_id, tenant_id, start_date, end_date, monthly_rent, advance_amount, status, notes, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tenancy *domain.Tenancy) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tenancies (`+tenancyColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenancy.ID,
		tenancy.PropertyID,
		tenancy.TenantID,
		tenancy.StartDate,
		tenancy.EndDate,
		tenancy.MonthlyRent,
		tenancy.AdvanceAmount,
		tenancy.Status,
		tenancy.Notes,
		tenancy.CreatedAt,
		tenancy.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Tenancy, error) {
	var tenancy domain.Tenancy
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenancyColumns+` FROM tenancies WHERE id = ?`,
		id,
	).Scan(&tenancy).Error
	if err != nil {
		return nil, err
	}
	if tenancy.ID == 0 {
		return nil, nil
	}
	return &tenancy, nil
}

func (r *repo) FindActiveByProperty(ctx context.Context, db *gorm.DB, propertyID snowflake.ID) (*domain.Tenancy, error) {
	var tenancy domain.Tenancy
	err := db.WithContext(ctx).Raw(
		`SELECT `+tenancyColumns+` FROM tenancies
		 WHERE property_id = ? AND status = ?
		 ORDER BY start_date DESC
		 LIMIT 1`,
		propertyID,
		domain.StatusActive,
	).Scan(&tenancy).Error
	if err != nil {
		return nil, err
	}
	if tenancy.ID == 0 {
		return nil, nil
	}
	return &tenancy, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTenancyFilter) ([]*domain.Tenancy, error) {
	var tenancies []*domain.Tenancy
	stmt := db.WithContext(ctx).Model(&domain.Tenancy{})
	if filter.PropertyID != 0 {
		stmt = stmt.Where("property_id = ?", filter.PropertyID)
	}
	if filter.TenantID != 0 {
		stmt = stmt.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if err := stmt.Order("start_date desc, id desc").Find(&tenancies).Error; err != nil {
		return nil, err
	}
	return tenancies, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, afterID snowflake.ID, limit int) ([]*domain.Tenancy, error) {
	var tenancies []*domain.Tenancy
	err := db.WithContext(ctx).
		Model(&domain.Tenancy{}).
		Where("status = ? AND id > ?", domain.StatusActive, afterID).
		Order("id asc").
		Limit(limit).
		Find(&tenancies).Error
	if err != nil {
		return nil, err
	}
	return tenancies, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tenancy *domain.Tenancy) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenancies
		 SET start_date = ?, end_date = ?, monthly_rent = ?, advance_amount = ?, status = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		tenancy.StartDate,
		tenancy.EndDate,
		tenancy.MonthlyRent,
		tenancy.AdvanceAmount,
		tenancy.Status,
		tenancy.Notes,
		tenancy.UpdatedAt,
		tenancy.ID,
	).Error
}
