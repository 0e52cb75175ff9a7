package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/clock"
	"github.com/smallbiznis/rentbook/internal/property/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

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
		log:      p.Log.Named("property.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePropertyRequest) (domain.Property, error) {
	address := strings.TrimSpace(req.Address)
	if address == "" {
		return domain.Property{}, domain.ErrInvalidAddress
	}

	now := s.clock.Now().UTC()
	property := domain.Property{
		ID:        s.genID.Generate(),
		Address:   address,
		Details:   strings.TrimSpace(req.Details),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	propertySlug, err := s.uniqueSlug(ctx, address, property.ID)
	if err != nil {
		return domain.Property{}, err
	}
	property.Slug = propertySlug

	if err := s.repo.Insert(ctx, s.db, &property); err != nil {
		return domain.Property{}, err
	}

	s.audit(ctx, "property.create", property.ID, map[string]any{
		"slug":    property.Slug,
		"address": property.Address,
	})
	return property, nil
}

func (s *Service) GetByID(ctx context.Context, rawID string) (domain.Property, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.Property{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Property{}, err
	}
	if item == nil {
		return domain.Property{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPropertyRequest) (domain.ListPropertyResponse, error) {
	filter := domain.ListPropertyFilter{
		Active: req.Active,
		Query:  strings.TrimSpace(req.Query),
	}
	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := decodeCursor(token)
		if err != nil {
			return domain.ListPropertyResponse{}, err
		}
		filter.Cursor = cursor
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	items, err := s.repo.List(ctx, s.db, filter, pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  int(pageSize),
	})
	if err != nil {
		return domain.ListPropertyResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(property *domain.Property) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        property.ID.String(),
			CreatedAt: property.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	properties := make([]domain.Property, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		properties = append(properties, *item)
	}

	resp := domain.ListPropertyResponse{Properties: properties}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePropertyRequest) (domain.Property, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return domain.Property{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Property{}, err
	}
	if item == nil {
		return domain.Property{}, domain.ErrNotFound
	}

	changes := map[string]any{}
	if req.Address != nil {
		address := strings.TrimSpace(*req.Address)
		if address == "" {
			return domain.Property{}, domain.ErrInvalidAddress
		}
		if address != item.Address {
			item.Address = address
			changes["address"] = address
		}
	}
	if req.Details != nil {
		details := strings.TrimSpace(*req.Details)
		if details != item.Details {
			item.Details = details
			changes["details"] = details
		}
	}
	if req.IsActive != nil && *req.IsActive != item.IsActive {
		item.IsActive = *req.IsActive
		changes["is_active"] = item.IsActive
	}
	if len(changes) == 0 {
		return *item, nil
	}

	item.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		return domain.Property{}, err
	}

	s.audit(ctx, "property.update", item.ID, changes)
	return *item, nil
}

// Delete removes a property that never had a tenancy. A property with history
// is deactivated instead and its active tenancy terminated.
func (s *Service) Delete(ctx context.Context, rawID string) (domain.DeletePropertyResponse, error) {
	id, err := parseID(rawID)
	if err != nil {
		return domain.DeletePropertyResponse{}, err
	}

	resp := domain.DeletePropertyResponse{ID: id.String()}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		count, err := s.repo.CountTenancies(ctx, tx, id)
		if err != nil {
			return err
		}
		if count == 0 {
			resp.Mode = domain.DeleteModeHard
			return s.repo.Delete(ctx, tx, id)
		}

		now := s.clock.Now().UTC()
		y, m, d := now.Date()
		ended, err := s.repo.EndActiveTenancies(ctx, tx, id, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), now)
		if err != nil {
			return err
		}
		item.IsActive = false
		item.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		resp.Mode = domain.DeleteModeSoft
		resp.Ended = ended
		return nil
	})
	if err != nil {
		return domain.DeletePropertyResponse{}, err
	}

	s.audit(ctx, "property.delete", id, map[string]any{
		"mode":            string(resp.Mode),
		"ended_tenancies": resp.Ended,
	})
	s.log.Info("property deleted", zap.String("property_id", resp.ID), zap.String("mode", string(resp.Mode)))
	return resp, nil
}

func (s *Service) uniqueSlug(ctx context.Context, address string, id snowflake.ID) (string, error) {
	base := slug.Make(address)
	if base == "" {
		base = "property"
	}
	existing, err := s.repo.FindBySlug(ctx, s.db, base)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return base, nil
	}
	suffix := id.Base36()
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return base + "-" + suffix, nil
}

func (s *Service) audit(ctx context.Context, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, "", nil, action, "property", &targetID, metadata); err != nil {
		s.log.Warn("audit log failed", zap.String("action", action), zap.Error(err))
	}
}

func decodeCursor(token string) (*domain.Cursor, error) {
	decoded, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
	if err != nil {
		return nil, domain.ErrInvalidPageToken
	}
	id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
	if err != nil || id == 0 {
		return nil, domain.ErrInvalidPageToken
	}
	return &domain.Cursor{ID: id, CreatedAt: createdAt}, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
