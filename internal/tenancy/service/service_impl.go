package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/config"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	"github.com/smallbiznis/rentbook/internal/rent/schedule"
	"github.com/smallbiznis/rentbook/internal/tenancy/domain"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultAccrualBatchSize = 100

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	PropertySvc propertydomain.Service
	TenantSvc   tenantdomain.Service
	RentSvc     rentdomain.Service
	AuditSvc    auditdomain.Service      `optional:"true"`
	Policy      *config.RentPolicyHolder `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	propertySvc propertydomain.Service
	tenantSvc   tenantdomain.Service
	rentSvc     rentdomain.Service
	auditSvc    auditdomain.Service
	policy      *config.RentPolicyHolder
}

func New(p Params) domain.Service {
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticRentPolicyHolder(config.DefaultRentPolicy())
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("tenancy.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		propertySvc: p.PropertySvc,
		tenantSvc:   p.TenantSvc,
		rentSvc:     p.RentSvc,
		auditSvc:    p.AuditSvc,
		policy:      policy,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenancyRequest) (domain.CreateTenancyResponse, error) {
	if req.StartDate.IsZero() {
		return domain.CreateTenancyResponse{}, domain.ErrInvalidStartDate
	}
	if req.MonthlyRent.IsNegative() {
		return domain.CreateTenancyResponse{}, domain.ErrInvalidMonthlyRent
	}
	if req.AdvanceAmount.IsNegative() {
		return domain.CreateTenancyResponse{}, domain.ErrInvalidAdvanceAmount
	}

	property, err := s.propertySvc.GetByID(ctx, req.PropertyID)
	if err != nil {
		if errors.Is(err, propertydomain.ErrNotFound) || errors.Is(err, propertydomain.ErrInvalidID) {
			return domain.CreateTenancyResponse{}, domain.ErrInvalidProperty
		}
		return domain.CreateTenancyResponse{}, err
	}
	if !property.IsActive {
		return domain.CreateTenancyResponse{}, domain.ErrPropertyInactive
	}

	tenant, err := s.tenantSvc.GetByID(ctx, req.TenantID)
	if err != nil {
		if errors.Is(err, tenantdomain.ErrNotFound) || errors.Is(err, tenantdomain.ErrInvalidID) {
			return domain.CreateTenancyResponse{}, domain.ErrInvalidTenant
		}
		return domain.CreateTenancyResponse{}, err
	}

	now := s.clock.Now().UTC()
	tenancy := domain.Tenancy{
		ID:            s.genID.Generate(),
		PropertyID:    property.ID,
		TenantID:      tenant.ID,
		StartDate:     schedule.Date(req.StartDate),
		MonthlyRent:   req.MonthlyRent,
		AdvanceAmount: req.AdvanceAmount,
		Status:        domain.StatusActive,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	var records []rentdomain.RentRecord
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		occupied, err := s.repo.FindActiveByProperty(ctx, tx, property.ID)
		if err != nil {
			return err
		}
		if occupied != nil {
			return domain.ErrPropertyOccupied
		}
		if err := s.repo.Insert(ctx, tx, &tenancy); err != nil {
			return err
		}
		records, err = s.rentSvc.GenerateInitial(ctx, tx, tenancy.Terms())
		return err
	})
	if err != nil {
		return domain.CreateTenancyResponse{}, err
	}

	s.audit(ctx, "tenancy.create", tenancy.ID, map[string]any{
		"property_id":  tenancy.PropertyID.String(),
		"tenant_id":    tenancy.TenantID.String(),
		"start_date":   tenancy.StartDate.Format(time.DateOnly),
		"monthly_rent": tenancy.MonthlyRent.String(),
		"generated":    len(records),
	})
	s.log.Info("tenancy created",
		zap.String("tenancy_id", tenancy.ID.String()),
		zap.String("property_id", tenancy.PropertyID.String()),
		zap.Int("rent_records", len(records)),
	)
	return domain.CreateTenancyResponse{Tenancy: tenancy, Records: records}, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Tenancy, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Tenancy{}, err
	}
	return s.find(ctx, s.db, id)
}

func (s *Service) List(ctx context.Context, req domain.ListTenancyRequest) ([]domain.Tenancy, error) {
	var filter domain.ListTenancyFilter
	if raw := strings.TrimSpace(req.PropertyID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidProperty
		}
		filter.PropertyID = id
	}
	if raw := strings.TrimSpace(req.TenantID); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return nil, domain.ErrInvalidTenant
		}
		filter.TenantID = id
	}
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	tenancies := make([]domain.Tenancy, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenancies = append(tenancies, *item)
	}
	return tenancies, nil
}

// Update changes tenancy fields. A change of start date or monthly rent
// reconciles the rent schedule in the same transaction.
func (s *Service) Update(ctx context.Context, req domain.UpdateTenancyRequest) (domain.UpdateTenancyResponse, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.UpdateTenancyResponse{}, err
	}
	if req.StartDate != nil && req.StartDate.IsZero() {
		return domain.UpdateTenancyResponse{}, domain.ErrInvalidStartDate
	}
	if req.MonthlyRent != nil && req.MonthlyRent.IsNegative() {
		return domain.UpdateTenancyResponse{}, domain.ErrInvalidMonthlyRent
	}
	if req.AdvanceAmount != nil && req.AdvanceAmount.IsNegative() {
		return domain.UpdateTenancyResponse{}, domain.ErrInvalidAdvanceAmount
	}

	var (
		resp    domain.UpdateTenancyResponse
		changes = map[string]any{}
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tenancy, err := s.find(ctx, tx, id)
		if err != nil {
			return err
		}

		termsChanged := false
		if req.StartDate != nil {
			start := schedule.Date(*req.StartDate)
			if tenancy.EndDate != nil && start.After(*tenancy.EndDate) {
				return domain.ErrInvalidStartDate
			}
			if !start.Equal(tenancy.StartDate) {
				tenancy.StartDate = start
				changes["start_date"] = start.Format(time.DateOnly)
				termsChanged = true
			}
		}
		if req.MonthlyRent != nil && !req.MonthlyRent.Equal(tenancy.MonthlyRent) {
			tenancy.MonthlyRent = *req.MonthlyRent
			changes["monthly_rent"] = tenancy.MonthlyRent.String()
			termsChanged = true
		}
		if req.AdvanceAmount != nil && !req.AdvanceAmount.Equal(tenancy.AdvanceAmount) {
			tenancy.AdvanceAmount = *req.AdvanceAmount
			changes["advance_amount"] = tenancy.AdvanceAmount.String()
		}
		if req.Notes != nil {
			if notes := strings.TrimSpace(*req.Notes); notes != tenancy.Notes {
				tenancy.Notes = notes
				changes["notes"] = notes
			}
		}

		resp.Tenancy = tenancy
		if len(changes) == 0 {
			return nil
		}

		tenancy.UpdatedAt = s.clock.Now().UTC()
		resp.Tenancy = tenancy
		if err := s.repo.Update(ctx, tx, &tenancy); err != nil {
			return err
		}
		if !termsChanged {
			return nil
		}

		plan, err := s.rentSvc.Sync(ctx, tx, tenancy.Terms())
		if err != nil {
			return err
		}
		resp.Plan = &plan
		return nil
	})
	if err != nil {
		return domain.UpdateTenancyResponse{}, err
	}

	if len(changes) > 0 {
		if resp.Plan != nil {
			changes["deleted_records"] = len(resp.Plan.ToDelete)
			changes["inserted_records"] = len(resp.Plan.ToInsert)
		}
		s.audit(ctx, "tenancy.update", id, changes)
	}
	return resp, nil
}

// End closes an active tenancy. Pending records for periods due after the
// end date are dropped; paid and partial records stay.
func (s *Service) End(ctx context.Context, req domain.EndTenancyRequest) (domain.Tenancy, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Tenancy{}, err
	}

	status := domain.StatusCompleted
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status = domain.Status(strings.ToLower(raw))
		if status != domain.StatusCompleted && status != domain.StatusTerminated {
			return domain.Tenancy{}, domain.ErrInvalidStatus
		}
	}

	// Tenancies end today or on a past date; accrual skips ended tenancies.
	today := s.today()
	endDate := today
	if req.EndDate != nil {
		if req.EndDate.IsZero() {
			return domain.Tenancy{}, domain.ErrInvalidEndDate
		}
		endDate = schedule.Date(*req.EndDate)
		if endDate.After(today) {
			return domain.Tenancy{}, domain.ErrInvalidEndDate
		}
	}

	var (
		tenancy domain.Tenancy
		plan    rentdomain.Plan
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		tenancy, err = s.find(ctx, tx, id)
		if err != nil {
			return err
		}
		if tenancy.Status != domain.StatusActive {
			return domain.ErrNotActive
		}
		if endDate.Before(tenancy.StartDate) {
			return domain.ErrInvalidEndDate
		}

		tenancy.EndDate = &endDate
		tenancy.Status = status
		tenancy.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, &tenancy); err != nil {
			return err
		}

		plan, err = s.rentSvc.Sync(ctx, tx, tenancy.Terms())
		return err
	})
	if err != nil {
		return domain.Tenancy{}, err
	}

	s.audit(ctx, "tenancy.end", id, map[string]any{
		"status":          string(status),
		"end_date":        endDate.Format(time.DateOnly),
		"deleted_records": len(plan.ToDelete),
	})
	return tenancy, nil
}

func (s *Service) ListRecords(ctx context.Context, rawID string, status string) ([]rentdomain.RentRecord, error) {
	tenancy, err := s.GetByID(ctx, rawID)
	if err != nil {
		return nil, err
	}
	return s.rentSvc.List(ctx, rentdomain.ListRecordsRequest{
		TenancyID: tenancy.ID.String(),
		Status:    status,
	})
}

// Sync reconciles stored records with the tenancy's current terms.
func (s *Service) Sync(ctx context.Context, rawID string) (rentdomain.Plan, error) {
	tenancy, err := s.GetByID(ctx, rawID)
	if err != nil {
		return rentdomain.Plan{}, err
	}

	plan, err := s.rentSvc.Sync(ctx, nil, tenancy.Terms())
	if err != nil {
		return rentdomain.Plan{}, err
	}
	if !plan.Empty() {
		s.audit(ctx, "tenancy.sync", tenancy.ID, map[string]any{
			"deleted_records":  len(plan.ToDelete),
			"inserted_records": len(plan.ToInsert),
		})
	}
	return plan, nil
}

func (s *Service) AccrueDue(ctx context.Context, asOf time.Time, batchSize int) (domain.AccrualResult, error) {
	if batchSize <= 0 {
		batchSize = defaultAccrualBatchSize
	}

	var (
		result  domain.AccrualResult
		errs    []error
		afterID snowflake.ID
	)
	for {
		if err := ctx.Err(); err != nil {
			return result, errors.Join(append(errs, err)...)
		}

		batch, err := s.repo.ListActive(ctx, s.db, afterID, batchSize)
		if err != nil {
			return result, errors.Join(append(errs, err)...)
		}
		for _, tenancy := range batch {
			inserted, err := s.rentSvc.Accrue(ctx, nil, tenancy.Terms(), asOf)
			if err != nil {
				result.Failed++
				errs = append(errs, fmt.Errorf("tenancy %s: %w", tenancy.ID, err))
				s.log.Warn("rent accrual failed",
					zap.String("tenancy_id", tenancy.ID.String()),
					zap.Error(err),
				)
				continue
			}
			result.Tenancies++
			result.Records += inserted
		}
		if len(batch) < batchSize {
			break
		}
		afterID = batch[len(batch)-1].ID
	}

	s.log.Info("rent accrual finished",
		zap.String("as_of", asOf.Format(time.DateOnly)),
		zap.Int("tenancies", result.Tenancies),
		zap.Int("records", result.Records),
		zap.Int("failed", result.Failed),
	)
	return result, errors.Join(errs...)
}

func (s *Service) find(ctx context.Context, db *gorm.DB, id snowflake.ID) (domain.Tenancy, error) {
	item, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return domain.Tenancy{}, err
	}
	if item == nil {
		return domain.Tenancy{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) today() time.Time {
	return schedule.Date(s.clock.Now().In(s.policy.Get().Location()))
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "tenancy", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
