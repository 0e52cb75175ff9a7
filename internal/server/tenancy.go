package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	tenancydomain "github.com/smallbiznis/rentbook/internal/tenancy/domain"
)

type createTenancyRequest struct {
	PropertyID    string           `json:"property_id"`
	TenantID      string           `json:"tenant_id"`
	StartDate     string           `json:"start_date"`
	MonthlyRent   decimal.Decimal  `json:"monthly_rent"`
	AdvanceAmount *decimal.Decimal `json:"advance_amount"`
	Notes         string           `json:"notes"`
}

type updateTenancyRequest struct {
	StartDate     *string          `json:"start_date"`
	MonthlyRent   *decimal.Decimal `json:"monthly_rent"`
	AdvanceAmount *decimal.Decimal `json:"advance_amount"`
	Notes         *string          `json:"notes"`
}

type endTenancyRequest struct {
	EndDate string `json:"end_date"`
	Status  string `json:"status"`
}

func (s *Server) CreateTenancy(c *gin.Context) {
	var req createTenancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	startDate, err := parseOptionalDate(req.StartDate)
	if err != nil || startDate == nil {
		AbortWithError(c, tenancydomain.ErrInvalidStartDate)
		return
	}
	advance := decimal.Zero
	if req.AdvanceAmount != nil {
		advance = *req.AdvanceAmount
	}

	resp, err := s.tenancySvc.Create(c.Request.Context(), tenancydomain.CreateTenancyRequest{
		PropertyID:    strings.TrimSpace(req.PropertyID),
		TenantID:      strings.TrimSpace(req.TenantID),
		StartDate:     *startDate,
		MonthlyRent:   req.MonthlyRent,
		AdvanceAmount: advance,
		Notes:         strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTenancies(c *gin.Context) {
	var query struct {
		PropertyID string `form:"property_id"`
		TenantID   string `form:"tenant_id"`
		Status     string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenancySvc.List(c.Request.Context(), tenancydomain.ListTenancyRequest{
		PropertyID: strings.TrimSpace(query.PropertyID),
		TenantID:   strings.TrimSpace(query.TenantID),
		Status:     strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTenancyByID(c *gin.Context) {
	resp, err := s.tenancySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTenancy(c *gin.Context) {
	var req updateTenancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := tenancydomain.UpdateTenancyRequest{
		ID:            strings.TrimSpace(c.Param("id")),
		MonthlyRent:   req.MonthlyRent,
		AdvanceAmount: req.AdvanceAmount,
		Notes:         req.Notes,
	}
	if req.StartDate != nil {
		startDate, err := parseOptionalDate(*req.StartDate)
		if err != nil || startDate == nil {
			AbortWithError(c, tenancydomain.ErrInvalidStartDate)
			return
		}
		update.StartDate = startDate
	}

	resp, err := s.tenancySvc.Update(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EndTenancy(c *gin.Context) {
	var req endTenancyRequest
	// An empty body ends the tenancy today as completed.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		AbortWithError(c, tenancydomain.ErrInvalidEndDate)
		return
	}

	resp, err := s.tenancySvc.End(c.Request.Context(), tenancydomain.EndTenancyRequest{
		ID:      strings.TrimSpace(c.Param("id")),
		EndDate: endDate,
		Status:  strings.TrimSpace(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SyncTenancy(c *gin.Context) {
	plan, err := s.tenancySvc.Sync(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": plan})
}

func (s *Server) ListTenancyRentRecords(c *gin.Context) {
	resp, err := s.tenancySvc.ListRecords(c.Request.Context(), strings.TrimSpace(c.Param("id")), strings.TrimSpace(c.Query("status")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isTenancyValidationError(err error) bool {
	for _, known := range []error{
		tenancydomain.ErrInvalidID,
		tenancydomain.ErrInvalidProperty,
		tenancydomain.ErrInvalidTenant,
		tenancydomain.ErrInvalidStartDate,
		tenancydomain.ErrInvalidEndDate,
		tenancydomain.ErrInvalidMonthlyRent,
		tenancydomain.ErrInvalidAdvanceAmount,
		tenancydomain.ErrInvalidStatus,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}
