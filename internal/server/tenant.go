package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/rentbook/internal/tenant/domain"
)

type createTenantRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	IDProof string `json:"id_proof"`
	Notes   string `json:"notes"`
}

type updateTenantRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	IDProof *string `json:"id_proof"`
	Notes   *string `json:"notes"`
}

func (s *Server) CreateTenant(c *gin.Context) {
	var req createTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Create(c.Request.Context(), tenantdomain.CreateTenantRequest{
		Name:    strings.TrimSpace(req.Name),
		Phone:   strings.TrimSpace(req.Phone),
		IDProof: strings.TrimSpace(req.IDProof),
		Notes:   strings.TrimSpace(req.Notes),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTenants(c *gin.Context) {
	var query struct {
		Name     string `form:"name"`
		Phone    string `form:"phone"`
		SortBy   string `form:"sort_by"`
		OrderBy  string `form:"order_by"`
		PageSize int    `form:"page_size"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.List(c.Request.Context(), tenantdomain.ListTenantRequest{
		Name:     strings.TrimSpace(query.Name),
		Phone:    strings.TrimSpace(query.Phone),
		SortBy:   strings.TrimSpace(query.SortBy),
		OrderBy:  strings.TrimSpace(query.OrderBy),
		PageSize: query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTenantByID(c *gin.Context) {
	resp, err := s.tenantSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateTenant(c *gin.Context) {
	var req updateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tenantSvc.Update(c.Request.Context(), tenantdomain.UpdateTenantRequest{
		ID:      strings.TrimSpace(c.Param("id")),
		Name:    req.Name,
		Phone:   req.Phone,
		IDProof: req.IDProof,
		Notes:   req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isTenantValidationError(err error) bool {
	switch err {
	case tenantdomain.ErrInvalidID,
		tenantdomain.ErrInvalidName,
		tenantdomain.ErrInvalidPhone:
		return true
	default:
		return false
	}
}
