package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/rentbook/internal/tenant/domain"
	"github.com/smallbiznis/rentbook/pkg/db/option"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"github.com/smallbiznis/rentbook/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Store(db *gorm.DB) repository.Store[domain.Tenant] {
	return repository.NewStore[domain.Tenant](db)
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTenantFilter) ([]*domain.Tenant, error) {
	opts := []option.QueryOption{
		option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
			"created_at": true,
			"name":       true,
		})),
		option.ApplyPagination(pagination.Pagination{PageSize: filter.Limit}),
	}
	if name := strings.TrimSpace(filter.Name); name != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "LOWER(name)",
			Operator: option.LIKE,
			Value:    "%" + strings.ToLower(name) + "%",
		}))
	}
	if phone := strings.TrimSpace(filter.Phone); phone != "" {
		opts = append(opts, option.ApplyOperator(option.Condition{
			Field:    "phone",
			Operator: option.EQ,
			Value:    phone,
		}))
	}
	return r.Store(db).List(ctx, nil, opts...)
}
