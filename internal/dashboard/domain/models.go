package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the landlord overview shown on the dashboard.
type Summary struct {
	AsOf               time.Time       `json:"as_of"`
	Currency           string          `json:"currency"`
	ActiveProperties   int64           `json:"active_properties"`
	OccupiedProperties int64           `json:"occupied_properties"`
	VacantProperties   int64           `json:"vacant_properties"`
	Tenants            int64           `json:"tenants"`
	ActiveTenancies    int64           `json:"active_tenancies"`
	PendingRecords     int64           `json:"pending_records"`
	PartialRecords     int64           `json:"partial_records"`
	TotalOutstanding   decimal.Decimal `json:"total_outstanding"`
	Aging              []AgingBucket   `json:"aging"`
}

// AgingBucket sums outstanding rent by how long ago its period started.
type AgingBucket struct {
	Label  string          `json:"label"`
	Count  int64           `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Activity is a human-readable line derived from the audit trail.
type Activity struct {
	Action     string    `json:"action"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ActivityResponse struct {
	Activity []Activity `json:"activity"`
}

type Service interface {
	Summary(ctx context.Context) (Summary, error)
	ListActivity(ctx context.Context, limit int) (ActivityResponse, error)
}
