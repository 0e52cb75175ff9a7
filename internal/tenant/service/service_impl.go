package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/audit/masking"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/tenant/domain"
	"github.com/smallbiznis/rentbook/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// sensitiveFields never reach audit metadata in clear text.
var sensitiveFields = []string{"id_proof", "phone"}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	auditSvc auditdomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("tenant.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateTenantRequest) (domain.Tenant, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Tenant{}, domain.ErrInvalidName
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return domain.Tenant{}, err
	}

	now := s.clock.Now().UTC()
	tenant := domain.Tenant{
		ID:        s.genID.Generate(),
		Name:      name,
		Phone:     phone,
		IDProof:   strings.TrimSpace(req.IDProof),
		Notes:     strings.TrimSpace(req.Notes),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Store(s.db).Insert(ctx, &tenant); err != nil {
		return domain.Tenant{}, err
	}

	s.audit(ctx, "tenant.create", tenant.ID, map[string]any{
		"name":     tenant.Name,
		"phone":    tenant.Phone,
		"id_proof": tenant.IDProof,
	})
	return tenant, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Tenant, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Tenant{}, err
	}
	item, err := s.repo.Store(s.db).Get(ctx, &domain.Tenant{ID: id})
	if err != nil {
		return domain.Tenant{}, err
	}
	if item == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListTenantRequest) ([]domain.Tenant, error) {
	limit := req.PageSize
	if limit <= 0 || limit > 250 {
		limit = 250
	}
	items, err := s.repo.List(ctx, s.db, domain.ListTenantFilter{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		SortBy:  req.SortBy,
		OrderBy: req.OrderBy,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}

	tenants := make([]domain.Tenant, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		tenants = append(tenants, *item)
	}
	return tenants, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateTenantRequest) (domain.Tenant, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Tenant{}, err
	}

	store := s.repo.Store(s.db)
	item, err := store.Get(ctx, &domain.Tenant{ID: id})
	if err != nil {
		return domain.Tenant{}, err
	}
	if item == nil {
		return domain.Tenant{}, domain.ErrNotFound
	}

	changes := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Tenant{}, domain.ErrInvalidName
		}
		if name != item.Name {
			item.Name = name
			changes["name"] = name
		}
	}
	if req.Phone != nil {
		phone, err := normalizePhone(*req.Phone)
		if err != nil {
			return domain.Tenant{}, err
		}
		if phone != item.Phone {
			item.Phone = phone
			changes["phone"] = phone
		}
	}
	if req.IDProof != nil {
		if proof := strings.TrimSpace(*req.IDProof); proof != item.IDProof {
			item.IDProof = proof
			changes["id_proof"] = proof
		}
	}
	if req.Notes != nil {
		if notes := strings.TrimSpace(*req.Notes); notes != item.Notes {
			item.Notes = notes
			changes["notes"] = notes
		}
	}
	if len(changes) == 0 {
		return *item, nil
	}

	item.UpdatedAt = s.clock.Now().UTC()
	updates := make(map[string]any, len(changes)+1)
	for key, value := range changes {
		updates[key] = value
	}
	updates["updated_at"] = item.UpdatedAt
	if err := store.Patch(ctx, id.String(), updates); err != nil {
		if errors.Is(err, repository.ErrNoRows) {
			return domain.Tenant{}, domain.ErrNotFound
		}
		return domain.Tenant{}, err
	}

	s.audit(ctx, "tenant.update", item.ID, changes)
	return *item, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "tenant", &targetID, masking.MaskFields(metadata, sensitiveFields...)); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func normalizePhone(value string) (string, error) {
	phone := strings.TrimSpace(value)
	if phone == "" {
		return "", nil
	}
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')':
		default:
			return "", domain.ErrInvalidPhone
		}
	}
	if digits < 5 {
		return "", domain.ErrInvalidPhone
	}
	return phone, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
