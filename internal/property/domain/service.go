package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

type CreatePropertyRequest struct {
	Address string
	Details string
}

type UpdatePropertyRequest struct {
	ID       string
	Address  *string
	Details  *string
	IsActive *bool
}

type ListPropertyRequest struct {
	PageToken string
	PageSize  int32
	Active    *bool
	Query     string
}

type ListPropertyResponse struct {
	pagination.PageInfo
	Properties []Property `json:"properties"`
}

type DeletePropertyResponse struct {
	ID    string     `json:"id"`
	Mode  DeleteMode `json:"mode"`
	Ended int64      `json:"ended_tenancies"`
}

type Service interface {
	Create(context.Context, CreatePropertyRequest) (Property, error)
	GetByID(context.Context, string) (Property, error)
	List(context.Context, ListPropertyRequest) (ListPropertyResponse, error)
	Update(context.Context, UpdatePropertyRequest) (Property, error)
	Delete(context.Context, string) (DeletePropertyResponse, error)
}

var (
	ErrInvalidID        = errors.New("invalid_id")
	ErrInvalidAddress   = errors.New("invalid_address")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrNotFound         = errors.New("not_found")
)
