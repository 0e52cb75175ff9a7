package domain

import (
	"context"
	"errors"
)

type CreateTenantRequest struct {
	Name    string
	Phone   string
	IDProof string
	Notes   string
}

type UpdateTenantRequest struct {
	ID      string
	Name    *string
	Phone   *string
	IDProof *string
	Notes   *string
}

type ListTenantRequest struct {
	Name     string
	Phone    string
	SortBy   string
	OrderBy  string
	PageSize int
}

type Service interface {
	Create(context.Context, CreateTenantRequest) (Tenant, error)
	GetByID(context.Context, string) (Tenant, error)
	List(context.Context, ListTenantRequest) ([]Tenant, error)
	Update(context.Context, UpdateTenantRequest) (Tenant, error)
}

var (
	ErrInvalidID    = errors.New("invalid_id")
	ErrInvalidName  = errors.New("invalid_name")
	ErrInvalidPhone = errors.New("invalid_phone")
	ErrNotFound     = errors.New("not_found")
)
