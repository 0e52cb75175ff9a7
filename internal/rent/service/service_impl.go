package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/observability/metrics"
	"github.com/smallbiznis/rentbook/internal/rent/domain"
	"github.com/smallbiznis/rentbook/internal/rent/schedule"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	sourceInitial   = "initial"
	sourceReconcile = "reconcile"
	sourceAccrual   = "accrual"
)

// previewTenancyID stands in for a tenancy that does not exist yet.
const previewTenancyID snowflake.ID = 1

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Policy   *config.RentPolicyHolder `optional:"true"`
	Metrics  *metrics.Metrics         `optional:"true"`
	AuditSvc auditdomain.Service      `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	policy   *config.RentPolicyHolder
	metrics  *metrics.Metrics
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticRentPolicyHolder(config.DefaultRentPolicy())
	}
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("rent.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		policy:   policy,
		metrics:  p.Metrics,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRecordsRequest) ([]domain.RentRecord, error) {
	tenancyID, err := parseID(req.TenancyID)
	if err != nil {
		return nil, err
	}

	filter := domain.RecordFilter{}
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed := domain.Status(strings.ToLower(status))
		if !parsed.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Statuses = []domain.Status{parsed}
	}

	records, err := s.repo.Find(ctx, s.db, tenancyID, filter)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []domain.RentRecord{}
	}
	return records, nil
}

func (s *Service) MarkPaid(ctx context.Context, req domain.MarkPaidRequest) (domain.RentRecord, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.RentRecord{}, err
	}

	paidDate := s.today()
	if req.PaidDate != nil {
		if req.PaidDate.IsZero() {
			return domain.RentRecord{}, domain.ErrInvalidPaidDate
		}
		paidDate = schedule.Date(*req.PaidDate)
	}

	var updated domain.RentRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrNotFound
		}
		if record.Status == domain.StatusPaid {
			return domain.ErrInvalidTransition
		}

		record.Status = domain.StatusPaid
		record.AmountPaid = record.AmountDue
		record.PaidDate = &paidDate
		record.Remarks = paymentRemarks(record.AmountPaid, decimal.Zero, req.Remarks)
		record.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.UpdatePayment(ctx, tx, record); err != nil {
			return err
		}
		updated = *record
		return nil
	})
	if err != nil {
		return domain.RentRecord{}, err
	}

	s.metrics.RecordPayment(ctx, string(domain.StatusPaid))
	s.audit(ctx, "rent_record.mark_paid", updated, map[string]any{
		"amount_paid": updated.AmountPaid.StringFixed(2),
		"paid_date":   paidDate.Format("2006-01-02"),
	})
	s.log.Info("rent marked paid",
		zap.String("rent_record_id", updated.ID.String()),
		zap.String("tenancy_id", updated.TenancyID.String()),
	)
	return updated, nil
}

func (s *Service) RecordPartial(ctx context.Context, req domain.RecordPartialRequest) (domain.RentRecord, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.RentRecord{}, err
	}
	if !req.AmountPaid.IsPositive() {
		return domain.RentRecord{}, domain.ErrInvalidAmountPaid
	}

	var updated domain.RentRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		record, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.ErrNotFound
		}
		if record.Status == domain.StatusPaid {
			return domain.ErrInvalidTransition
		}
		if req.AmountPaid.GreaterThanOrEqual(record.AmountDue) {
			return domain.ErrInvalidAmountPaid
		}

		record.Status = domain.StatusPartial
		record.AmountPaid = req.AmountPaid
		record.PaidDate = nil
		record.Remarks = paymentRemarks(record.AmountPaid, record.Outstanding(), req.Remarks)
		record.UpdatedAt = s.clock.Now().UTC()

		if err := s.repo.UpdatePayment(ctx, tx, record); err != nil {
			return err
		}
		updated = *record
		return nil
	})
	if err != nil {
		return domain.RentRecord{}, err
	}

	s.metrics.RecordPayment(ctx, string(domain.StatusPartial))
	s.audit(ctx, "rent_record.record_partial", updated, map[string]any{
		"amount_paid": updated.AmountPaid.StringFixed(2),
		"remaining":   updated.Outstanding().StringFixed(2),
	})
	return updated, nil
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.PreviewResponse, error) {
	asOf := s.today()
	if req.AsOf != nil {
		asOf = schedule.Date(*req.AsOf)
	}
	horizon := schedule.Horizon(asOf, req.EndDate)

	drafts, err := schedule.GenerateInitialSchedule(previewTenancyID, req.StartDate, req.MonthlyRent, horizon)
	if err != nil {
		return domain.PreviewResponse{}, err
	}

	total := decimal.Zero
	for i := range drafts {
		drafts[i].TenancyID = 0
		total = total.Add(drafts[i].AmountDue)
	}
	return domain.PreviewResponse{AsOf: horizon, Periods: drafts, Total: total}, nil
}

func (s *Service) GenerateInitial(ctx context.Context, db *gorm.DB, terms domain.Terms) ([]domain.RentRecord, error) {
	horizon := schedule.Horizon(s.today(), terms.EndDate)
	drafts, err := schedule.GenerateInitialSchedule(terms.TenancyID, terms.StartDate, terms.MonthlyRent, horizon)
	if err != nil {
		return nil, err
	}

	records := s.materialize(drafts)
	if err := s.repo.InsertMany(ctx, s.conn(db), records); err != nil {
		return nil, err
	}

	s.metrics.RecordGenerated(ctx, sourceInitial, len(records))
	s.log.Debug("initial rent schedule generated",
		zap.String("tenancy_id", terms.TenancyID.String()),
		zap.Int("records", len(records)),
	)
	return records, nil
}

// Sync reconciles stored records with the tenancy terms. Without a caller
// transaction the delete and insert run in one of their own.
func (s *Service) Sync(ctx context.Context, db *gorm.DB, terms domain.Terms) (domain.Plan, error) {
	var plan domain.Plan
	run := func(tx *gorm.DB) error {
		existing, err := s.repo.Find(ctx, tx, terms.TenancyID, domain.RecordFilter{})
		if err != nil {
			return err
		}

		horizon := schedule.Horizon(s.today(), terms.EndDate)
		plan, err = schedule.ReconcileSchedule(terms.TenancyID, terms.StartDate, terms.MonthlyRent, horizon, existing)
		if err != nil {
			return err
		}
		if plan.Empty() {
			return nil
		}

		if len(plan.ToDelete) > 0 {
			periods := make([]time.Time, 0, len(plan.ToDelete))
			for _, key := range plan.ToDelete {
				periods = append(periods, key.PeriodStart)
			}
			if err := s.repo.DeleteMany(ctx, tx, terms.TenancyID, domain.RecordFilter{
				Statuses:     []domain.Status{domain.StatusPending},
				PeriodStarts: periods,
			}); err != nil {
				return err
			}
		}
		return s.repo.InsertMany(ctx, tx, s.materialize(plan.ToInsert))
	}

	var err error
	if db != nil {
		err = run(db)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		s.metrics.RecordReconciliation(ctx, "failed")
		return domain.Plan{}, err
	}

	outcome := "applied"
	if plan.Empty() {
		outcome = "noop"
	}
	s.metrics.RecordReconciliation(ctx, outcome)
	s.metrics.RecordDeleted(ctx, sourceReconcile, len(plan.ToDelete))
	s.metrics.RecordGenerated(ctx, sourceReconcile, len(plan.ToInsert))
	s.log.Info("rent schedule reconciled",
		zap.String("tenancy_id", terms.TenancyID.String()),
		zap.Int("deleted", len(plan.ToDelete)),
		zap.Int("inserted", len(plan.ToInsert)),
	)
	return plan, nil
}

func (s *Service) Accrue(ctx context.Context, db *gorm.DB, terms domain.Terms, asOf time.Time) (int, error) {
	conn := s.conn(db)
	existing, err := s.repo.Find(ctx, conn, terms.TenancyID, domain.RecordFilter{})
	if err != nil {
		return 0, err
	}

	horizon := schedule.Horizon(s.localDate(asOf), terms.EndDate)
	missing, err := schedule.MissingPeriods(terms.TenancyID, terms.StartDate, terms.MonthlyRent, horizon, existing)
	if err != nil {
		return 0, err
	}
	if len(missing) == 0 {
		return 0, nil
	}

	if err := s.repo.InsertMany(ctx, conn, s.materialize(missing)); err != nil {
		return 0, err
	}
	s.metrics.RecordGenerated(ctx, sourceAccrual, len(missing))
	return len(missing), nil
}

func (s *Service) materialize(drafts []domain.Draft) []domain.RentRecord {
	now := s.clock.Now().UTC()
	records := make([]domain.RentRecord, 0, len(drafts))
	for _, draft := range drafts {
		records = append(records, draft.Record(s.genID.Generate(), now))
	}
	return records
}

func (s *Service) conn(db *gorm.DB) *gorm.DB {
	if db != nil {
		return db
	}
	return s.db
}

// today is the current civil date in the landlord's timezone.
func (s *Service) today() time.Time {
	return s.localDate(s.clock.Now())
}

func (s *Service) localDate(t time.Time) time.Time {
	return schedule.Date(t.In(s.policy.Get().Location()))
}

func (s *Service) audit(ctx context.Context, action string, record domain.RentRecord, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := record.ID.String()
	metadata["tenancy_id"] = record.TenancyID.String()
	metadata["period_start"] = record.PeriodStart.Format("2006-01-02")
	metadata["status"] = string(record.Status)
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "rent_record", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func paymentRemarks(paid, remaining decimal.Decimal, note string) string {
	remarks := fmt.Sprintf("Paid: %s | Remaining: %s", paid.StringFixed(2), remaining.StringFixed(2))
	if note = strings.TrimSpace(note); note != "" {
		remarks += " | " + note
	}
	return remarks
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
