package domain

import (
	"context"

	"github.com/smallbiznis/rentbook/pkg/repository"
	"gorm.io/gorm"
)

type ListTenantFilter struct {
	Name    string
	Phone   string
	SortBy  string
	OrderBy string
	Limit   int
}

type Repository interface {
	Store(db *gorm.DB) repository.Store[Tenant]
	List(ctx context.Context, db *gorm.DB, filter ListTenantFilter) ([]*Tenant, error)
}
