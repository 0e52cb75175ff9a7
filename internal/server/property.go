package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	propertydomain "github.com/smallbiznis/rentbook/internal/property/domain"
	"github.com/smallbiznis/rentbook/pkg/db/pagination"
)

type createPropertyRequest struct {
	Address string `json:"address"`
	Details string `json:"details"`
}

type updatePropertyRequest struct {
	Address  *string `json:"address"`
	Details  *string `json:"details"`
	IsActive *bool   `json:"is_active"`
}

func (s *Server) CreateProperty(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.propertySvc.Create(c.Request.Context(), propertydomain.CreatePropertyRequest{
		Address: strings.TrimSpace(req.Address),
		Details: strings.TrimSpace(req.Details),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListProperties(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Active string `form:"active"`
		Query  string `form:"q"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	active, err := parseOptionalBool(query.Active)
	if err != nil {
		AbortWithError(c, newValidationError("active", "invalid_active", "invalid active"))
		return
	}

	resp, err := s.propertySvc.List(c.Request.Context(), propertydomain.ListPropertyRequest{
		PageToken: strings.TrimSpace(query.PageToken),
		PageSize:  int32(query.PageSize),
		Active:    active,
		Query:     strings.TrimSpace(query.Query),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Properties, "page_info": resp.PageInfo})
}

func (s *Server) GetPropertyByID(c *gin.Context) {
	resp, err := s.propertySvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateProperty(c *gin.Context) {
	var req updatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.propertySvc.Update(c.Request.Context(), propertydomain.UpdatePropertyRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		Address:  req.Address,
		Details:  req.Details,
		IsActive: req.IsActive,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteProperty(c *gin.Context) {
	resp, err := s.propertySvc.Delete(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isPropertyValidationError(err error) bool {
	switch err {
	case propertydomain.ErrInvalidID,
		propertydomain.ErrInvalidAddress,
		propertydomain.ErrInvalidPageToken:
		return true
	default:
		return false
	}
}
