package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	rentdomain "github.com/smallbiznis/rentbook/internal/rent/domain"
)

type markPaidRequest struct {
	PaidDate string `json:"paid_date"`
	Remarks  string `json:"remarks"`
}

type recordPartialRequest struct {
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Remarks    string          `json:"remarks"`
}

func (s *Server) MarkRentPaid(c *gin.Context) {
	var req markPaidRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	paidDate, err := parseOptionalDate(req.PaidDate)
	if err != nil {
		AbortWithError(c, rentdomain.ErrInvalidPaidDate)
		return
	}

	resp, err := s.rentSvc.MarkPaid(c.Request.Context(), rentdomain.MarkPaidRequest{
		ID:       strings.TrimSpace(c.Param("id")),
		PaidDate: paidDate,
		Remarks:  strings.TrimSpace(req.Remarks),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordPartialRent(c *gin.Context) {
	var req recordPartialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.rentSvc.RecordPartial(c.Request.Context(), rentdomain.RecordPartialRequest{
		ID:         strings.TrimSpace(c.Param("id")),
		AmountPaid: req.AmountPaid,
		Remarks:    strings.TrimSpace(req.Remarks),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PreviewSchedule(c *gin.Context) {
	var query struct {
		Start string `form:"start"`
		Rent  string `form:"rent"`
		End   string `form:"end"`
		AsOf  string `form:"as_of"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	start, err := parseOptionalDate(query.Start)
	if err != nil || start == nil {
		AbortWithError(c, rentdomain.ErrInvalidStartDate)
		return
	}
	rent, err := parseOptionalDecimal(query.Rent)
	if err != nil || rent == nil {
		AbortWithError(c, rentdomain.ErrInvalidMonthlyRent)
		return
	}
	end, err := parseOptionalDate(query.End)
	if err != nil {
		AbortWithError(c, newValidationError("end", "invalid_end_date", "invalid end"))
		return
	}
	asOf, err := parseOptionalDate(query.AsOf)
	if err != nil {
		AbortWithError(c, rentdomain.ErrInvalidAsOf)
		return
	}

	resp, err := s.rentSvc.Preview(c.Request.Context(), rentdomain.PreviewRequest{
		StartDate:   *start,
		MonthlyRent: *rent,
		EndDate:     end,
		AsOf:        asOf,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isRentRecordValidationError(err error) bool {
	switch err {
	case rentdomain.ErrInvalidID,
		rentdomain.ErrInvalidStatus,
		rentdomain.ErrInvalidAmountPaid,
		rentdomain.ErrInvalidPaidDate:
		return true
	default:
		return false
	}
}
