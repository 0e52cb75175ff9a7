package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
)

type CreateTenancyRequest struct {
	PropertyID    string
	TenantID      string
	StartDate     time.Time
	MonthlyRent   decimal.Decimal
	AdvanceAmount decimal.Decimal
	Notes         string
}

type CreateTenancyResponse struct {
	Tenancy Tenancy                 `json:"tenancy"`
	Records []rentdomain.RentRecord `json:"rent_records"`
}

type UpdateTenancyRequest struct {
	ID            string
	StartDate     *time.Time
	MonthlyRent   *decimal.Decimal
	AdvanceAmount *decimal.Decimal
	Notes         *string
}

type UpdateTenancyResponse struct {
	Tenancy Tenancy          `json:"tenancy"`
	Plan    *rentdomain.Plan `json:"plan,omitempty"`
}

type EndTenancyRequest struct {
	ID      string
	EndDate *time.Time
	// Status is completed or terminated; empty means completed.
	Status string
}

type ListTenancyRequest struct {
	PropertyID string
	TenantID   string
	Status     string
}

type AccrualResult struct {
	Tenancies int `json:"tenancies"`
	Records   int `json:"records"`
	Failed    int `json:"failed"`
}

type Service interface {
	Create(context.Context, CreateTenancyRequest) (CreateTenancyResponse, error)
	GetByID(context.Context, string) (Tenancy, error)
	List(context.Context, ListTenancyRequest) ([]Tenancy, error)
	Update(context.Context, UpdateTenancyRequest) (UpdateTenancyResponse, error)
	End(context.Context, EndTenancyRequest) (Tenancy, error)

	ListRecords(ctx context.Context, id string, status string) ([]rentdomain.RentRecord, error)
	Sync(ctx context.Context, id string) (rentdomain.Plan, error)
	// AccrueDue inserts newly due periods for every active tenancy. Failures
	// of single tenancies are joined into the returned error; the rest proceed.
	AccrueDue(ctx context.Context, asOf time.Time, batchSize int) (AccrualResult, error)
}

var (
	ErrInvalidID            = errors.New("invalid_id")
	ErrInvalidProperty      = errors.New("invalid_property")
	ErrInvalidTenant        = errors.New("invalid_tenant")
	ErrInvalidStartDate     = errors.New("invalid_start_date")
	ErrInvalidEndDate       = errors.New("invalid_end_date")
	ErrInvalidMonthlyRent   = errors.New("invalid_monthly_rent")
	ErrInvalidAdvanceAmount = errors.New("invalid_advance_amount")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrPropertyInactive     = errors.New("property_inactive")
	ErrPropertyOccupied     = errors.New("property_occupied")
	ErrNotActive            = errors.New("tenancy_not_active")
	ErrNotFound             = errors.New("not_found")
)
