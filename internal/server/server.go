package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rentbook/internal/audit"
	auditdomain "github.com/smallbiznis/rentbook/internal/audit/domain"
	"github.com/smallbiznis/rentbook/internal/config"
	"github.com/smallbiznis/rentbook/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/rentbook/internal/dashboard/domain"
	"github.com/smallbiznis/rentbook/internal/observability"
	obsmiddleware "github.com/smallbiznis/rentbook/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/rentbook/internal/observability/metrics"
	obstracing "github.com/smallbiznis/rentbook/internal/observability/tracing"
	"github.com/smallbiznis/rentbook/internal/property"
	"github.com/smallbiznis/rentbook/internal/ratelimit"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	"github.com/smallbiznis/rentbook/internal/rent"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
	"github.com/smallbiznis/rentbook/internal/tenancy"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
	"github.com/smallbiznis/rentbook/internal/tenant"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	ratelimit.Module,
	audit.Module,
	property.Module,
	tenant.Module,
	rent.Module,
	tenancy.Module,
	dashboard.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	auditSvc     auditdomain.Service
	propertySvc  propertydomain.Service
	tenantSvc    tenantdomain.Service
	tenancySvc   tenancydomain.Service
	rentSvc      rentdomain.Service
	dashboardSvc dashboarddomain.Service
	limiter      writeLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB `optional:"true"`
	AuditSvc     auditdomain.Service
	PropertySvc  propertydomain.Service
	TenantSvc    tenantdomain.Service
	TenancySvc   tenancydomain.Service
	RentSvc      rentdomain.Service
	DashboardSvc dashboarddomain.Service
	Limiter      *ratelimit.WriteLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		auditSvc:     p.AuditSvc,
		propertySvc:  p.PropertySvc,
		tenantSvc:    p.TenantSvc,
		tenancySvc:   p.TenancySvc,
		rentSvc:      p.RentSvc,
		dashboardSvc: p.DashboardSvc,
	}

	if p.Limiter.Enabled() {
		svc.limiter = p.Limiter
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", RateLimitWrites(s.limiter))

	// -------- Properties --------
	api.POST("/properties", s.CreateProperty)
	api.GET("/properties", s.ListProperties)
	api.GET("/properties/:id", s.GetPropertyByID)
	api.PATCH("/properties/:id", s.UpdateProperty)
	api.DELETE("/properties/:id", s.DeleteProperty)

	// -------- Tenants --------
	api.POST("/tenants", s.CreateTenant)
	api.GET("/tenants", s.ListTenants)
	api.GET("/tenants/:id", s.GetTenantByID)
	api.PATCH("/tenants/:id", s.UpdateTenant)

	// -------- Tenancies --------
	api.POST("/tenancies", s.CreateTenancy)
	api.GET("/tenancies", s.ListTenancies)
	tenancies := api.Group("/tenancies/:id", TenancyContext())
	{
		tenancies.GET("", s.GetTenancyByID)
		tenancies.PATCH("", s.UpdateTenancy)
		tenancies.POST("/end", s.EndTenancy)
		tenancies.POST("/sync", s.SyncTenancy)
		tenancies.GET("/rent-records", s.ListTenancyRentRecords)
	}

	// -------- Rent records --------
	api.POST("/rent-records/:id/pay", s.MarkRentPaid)
	api.POST("/rent-records/:id/partial", s.RecordPartialRent)

	api.GET("/schedule/preview", s.PreviewSchedule)

	api.GET("/dashboard", s.GetDashboard)
	api.GET("/dashboard/activity", s.ListDashboardActivity)
	api.GET("/audit-logs", s.ListAuditLogs)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
	s.engine.NoMethod(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
