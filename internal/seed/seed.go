package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type sampleProperty struct {
	Address string
	Details string
}

type sampleTenant struct {
	Name    string
	Phone   string
	IDProof string
}

type sampleTenancy struct {
	Property    int
	Tenant      int
	StartDate   time.Time
	MonthlyRent int64
	Advance     int64
}

var (
	sampleProperties = []sampleProperty{
		{Address: "123 Oak Street, Downtown", Details: "2BHK apartment, 2nd floor"},
		{Address: "456 Maple Avenue, Suburb", Details: "3BHK independent house with garden"},
		{Address: "789 Pine Road, City Center", Details: "1BHK studio near metro"},
		{Address: "321 Elm Boulevard, Residential Area", Details: "2BHK with covered parking"},
	}

	sampleTenants = []sampleTenant{
		{Name: "John Smith", Phone: "555-0101", IDProof: "DL-123456"},
		{Name: "Sarah Johnson", Phone: "555-0102", IDProof: "PAS-789012"},
		{Name: "Michael Brown", Phone: "555-0103", IDProof: "DL-345678"},
		{Name: "Emily Davis", Phone: "555-0104", IDProof: "PAS-901234"},
	}

	sampleTenancies = []sampleTenancy{
		{Property: 0, Tenant: 0, StartDate: time.Date(2023, time.January, 15, 0, 0, 0, 0, time.UTC), MonthlyRent: 12000, Advance: 24000},
		{Property: 1, Tenant: 1, StartDate: time.Date(2023, time.June, 1, 0, 0, 0, 0, time.UTC), MonthlyRent: 18000, Advance: 36000},
		{Property: 2, Tenant: 2, StartDate: time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC), MonthlyRent: 8000, Advance: 16000},
	}
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	PropertyRepo propertydomain.Repository
	PropertySvc  propertydomain.Service
	TenantSvc    tenantdomain.Service
	TenancySvc   tenancydomain.Service
}

// Seeder inserts the sample portfolio. Properties are matched by slug, so a
// second run only fills in what is missing.
type Seeder struct {
	db           *gorm.DB
	log          *zap.Logger
	propertyRepo propertydomain.Repository
	propertySvc  propertydomain.Service
	tenantSvc    tenantdomain.Service
	tenancySvc   tenancydomain.Service
}

type Result struct {
	Properties int
	Tenants    int
	Tenancies  int
	Records    int
}

func New(p Params) *Seeder {
	return &Seeder{
		db:           p.DB,
		log:          p.Log.Named("seed"),
		propertyRepo: p.PropertyRepo,
		propertySvc:  p.PropertySvc,
		tenantSvc:    p.TenantSvc,
		tenancySvc:   p.TenancySvc,
	}
}

func (s *Seeder) Run(ctx context.Context) (Result, error) {
	if s == nil || s.db == nil {
		return Result{}, errors.New("seed database handle is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var result Result
	propertyIDs := make([]string, len(sampleProperties))
	createdProperty := make([]bool, len(sampleProperties))
	for i, sample := range sampleProperties {
		existing, err := s.propertyRepo.FindBySlug(ctx, s.db, slug.Make(sample.Address))
		if err != nil {
			return result, err
		}
		if existing != nil {
			propertyIDs[i] = existing.ID.String()
			continue
		}
		property, err := s.propertySvc.Create(ctx, propertydomain.CreatePropertyRequest{
			Address: sample.Address,
			Details: sample.Details,
		})
		if err != nil {
			return result, err
		}
		propertyIDs[i] = property.ID.String()
		createdProperty[i] = true
		result.Properties++
	}

	tenantIDs := make([]string, len(sampleTenants))
	for i, sample := range sampleTenants {
		id, created, err := s.ensureTenant(ctx, sample)
		if err != nil {
			return result, err
		}
		tenantIDs[i] = id
		if created {
			result.Tenants++
		}
	}

	for _, sample := range sampleTenancies {
		// Only a freshly created property gets its sample tenancy; an existing
		// one may have been let or ended since the last run.
		if !createdProperty[sample.Property] {
			continue
		}
		resp, err := s.tenancySvc.Create(ctx, tenancydomain.CreateTenancyRequest{
			PropertyID:    propertyIDs[sample.Property],
			TenantID:      tenantIDs[sample.Tenant],
			StartDate:     sample.StartDate,
			MonthlyRent:   decimal.NewFromInt(sample.MonthlyRent),
			AdvanceAmount: decimal.NewFromInt(sample.Advance),
		})
		if err != nil {
			return result, err
		}
		result.Tenancies++
		result.Records += len(resp.Records)
	}

	s.log.Info("sample data seeded",
		zap.Int("properties", result.Properties),
		zap.Int("tenants", result.Tenants),
		zap.Int("tenancies", result.Tenancies),
		zap.Int("rent_records", result.Records),
	)
	return result, nil
}

func (s *Seeder) ensureTenant(ctx context.Context, sample sampleTenant) (string, bool, error) {
	existing, err := s.tenantSvc.List(ctx, tenantdomain.ListTenantRequest{Name: sample.Name, Phone: sample.Phone})
	if err != nil {
		return "", false, err
	}
	for _, tenant := range existing {
		if strings.EqualFold(tenant.Name, sample.Name) && tenant.Phone == sample.Phone {
			return tenant.ID.String(), false, nil
		}
	}

	tenant, err := s.tenantSvc.Create(ctx, tenantdomain.CreateTenantRequest{
		Name:    sample.Name,
		Phone:   sample.Phone,
		IDProof: sample.IDProof,
	})
	if err != nil {
		return "", false, err
	}
	return tenant.ID.String(), true, nil
}
