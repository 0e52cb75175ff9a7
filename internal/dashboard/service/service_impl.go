package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	dashboard "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	"github.com/smallbiznis/rentbook/internal/rent/schedule"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Clock  clock.Clock
	Policy *config.RentPolicyHolder `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	clock  clock.Clock
	policy *config.RentPolicyHolder
}

func NewService(p Params) dashboard.Service {
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticRentPolicyHolder(config.DefaultRentPolicy())
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("dashboard.service"),
		clock:  p.Clock,
		policy: policy,
	}
}

type countsRow struct {
	ActiveProperties   int64 `gorm:"column:active_properties"`
	OccupiedProperties int64 `gorm:"column:occupied_properties"`
	Tenants            int64 `gorm:"column:tenants"`
	ActiveTenancies    int64 `gorm:"column:active_tenancies"`
}

type outstandingRow struct {
	PeriodStart time.Time       `gorm:"column:period_start"`
	AmountDue   decimal.Decimal `gorm:"column:amount_due"`
	AmountPaid  decimal.Decimal `gorm:"column:amount_paid"`
	Status      string          `gorm:"column:status"`
}

func (s *Service) Summary(ctx context.Context) (dashboard.Summary, error) {
	policy := s.policy.Get()
	asOf := schedule.Date(s.clock.Now().In(policy.Location()))

	var counts countsRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT
		   (SELECT COUNT(*) FROM properties WHERE is_active = ?) AS active_properties,
		   (SELECT COUNT(DISTINCT t.property_id)
		      FROM tenancies t
		      JOIN properties p ON p.id = t.property_id
		     WHERE t.status = 'active' AND p.is_active = ?) AS occupied_properties,
		   (SELECT COUNT(*) FROM tenants) AS tenants,
		   (SELECT COUNT(*) FROM tenancies WHERE status = 'active') AS active_tenancies`,
		true,
		true,
	).Scan(&counts).Error; err != nil {
		return dashboard.Summary{}, err
	}

	var rows []outstandingRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT period_start, amount_due, amount_paid, status
		 FROM rent_records
		 WHERE status <> 'paid'`,
	).Scan(&rows).Error; err != nil {
		return dashboard.Summary{}, err
	}

	summary := dashboard.Summary{
		AsOf:               asOf,
		Currency:           strings.ToUpper(strings.TrimSpace(policy.Currency)),
		ActiveProperties:   counts.ActiveProperties,
		OccupiedProperties: counts.OccupiedProperties,
		VacantProperties:   counts.ActiveProperties - counts.OccupiedProperties,
		Tenants:            counts.Tenants,
		ActiveTenancies:    counts.ActiveTenancies,
		TotalOutstanding:   decimal.Zero,
		Aging:              make([]dashboard.AgingBucket, len(policy.AgingBuckets)),
	}
	if summary.VacantProperties < 0 {
		summary.VacantProperties = 0
	}
	for i, bucket := range policy.AgingBuckets {
		summary.Aging[i] = dashboard.AgingBucket{Label: bucket.Label, Amount: decimal.Zero}
	}

	for _, row := range rows {
		switch strings.ToLower(strings.TrimSpace(row.Status)) {
		case "pending":
			summary.PendingRecords++
		case "partial":
			summary.PartialRecords++
		}

		outstanding := row.AmountDue.Sub(row.AmountPaid)
		if !outstanding.IsPositive() {
			continue
		}
		summary.TotalOutstanding = summary.TotalOutstanding.Add(outstanding)

		days := int(asOf.Sub(schedule.Date(row.PeriodStart)).Hours() / 24)
		if i := bucketIndex(policy.AgingBuckets, days); i >= 0 {
			summary.Aging[i].Count++
			summary.Aging[i].Amount = summary.Aging[i].Amount.Add(outstanding)
		}
	}

	return summary, nil
}

func bucketIndex(buckets []config.AgingBucket, days int) int {
	for i, bucket := range buckets {
		if days < bucket.MinDays {
			continue
		}
		if bucket.MaxDays != nil && days > *bucket.MaxDays {
			continue
		}
		return i
	}
	return -1
}

type activityRow struct {
	Action    string            `gorm:"column:action"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt time.Time         `gorm:"column:created_at"`
}

func (s *Service) ListActivity(ctx context.Context, limit int) (dashboard.ActivityResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 15
	}

	actions := []string{
		"tenancy.create",
		"tenancy.end",
		"tenancy.update",
		"rent_record.mark_paid",
		"rent_record.record_partial",
		"property.create",
		"property.delete",
	}

	var rows []activityRow
	if err := s.db.WithContext(ctx).Raw(
		`SELECT action, metadata, created_at
		 FROM audit_logs
		 WHERE action IN ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		actions,
		limit,
	).Scan(&rows).Error; err != nil {
		return dashboard.ActivityResponse{}, err
	}

	activity := make([]dashboard.Activity, 0, len(rows))
	for _, row := range rows {
		message := buildActivityMessage(row.Action, row.Metadata)
		if message == "" {
			continue
		}
		activity = append(activity, dashboard.Activity{
			Action:     row.Action,
			Message:    message,
			OccurredAt: row.CreatedAt,
		})
	}
	return dashboard.ActivityResponse{Activity: activity}, nil
}

func buildActivityMessage(action string, metadata datatypes.JSONMap) string {
	switch strings.TrimSpace(action) {
	case "tenancy.create":
		if start := metadataString(metadata, "start_date"); start != "" {
			return fmt.Sprintf("Tenancy started on %s", start)
		}
		return "Tenancy started"
	case "tenancy.end":
		if end := metadataString(metadata, "end_date"); end != "" {
			return fmt.Sprintf("Tenancy ended on %s", end)
		}
		return "Tenancy ended"
	case "tenancy.update":
		if rent := metadataString(metadata, "monthly_rent"); rent != "" {
			return fmt.Sprintf("Monthly rent changed to %s", rent)
		}
		return "Tenancy updated"
	case "rent_record.mark_paid":
		return formatRentMessage("paid in full", metadata)
	case "rent_record.record_partial":
		return formatRentMessage("partially paid", metadata)
	case "property.create":
		if address := metadataString(metadata, "address"); address != "" {
			return fmt.Sprintf("Property %s added", address)
		}
		return "Property added"
	case "property.delete":
		return "Property removed"
	default:
		return ""
	}
}

func formatRentMessage(verb string, metadata datatypes.JSONMap) string {
	period := formatPeriod(metadataString(metadata, "period_start"))
	amount := metadataString(metadata, "amount_paid")
	switch {
	case period != "" && amount != "":
		return fmt.Sprintf("Rent for %s %s (%s)", period, verb, amount)
	case period != "":
		return fmt.Sprintf("Rent for %s %s", period, verb)
	default:
		return fmt.Sprintf("Rent %s", verb)
	}
}

func formatPeriod(value string) string {
	if value == "" {
		return ""
	}
	at, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return ""
	}
	return at.Format("Jan 2006")
}

func metadataString(metadata datatypes.JSONMap, key string) string {
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch typed := value.(type) {
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return decimal.NewFromFloat(typed).String()
	default:
		return ""
	}
}
