package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
)

func (s *Server) GetPointsBalance(c *gin.Context) {
	resp, err := s.pointsSvc.GetBalance(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// AdjustPoints grants or deducts points by hand.
func (s *Server) AdjustPoints(c *gin.Context) {
	var req pointsdomain.AdjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.Action = strings.TrimSpace(req.Action)

	resp, err := s.pointsSvc.Adjust(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListPointsLogs(c *gin.Context) {
	var query pointsdomain.ListLogsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.ClientID = strings.TrimSpace(query.ClientID)

	resp, err := s.pointsSvc.ListLogs(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) EditPointsLog(c *gin.Context) {
	var req pointsdomain.EditLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.pointsSvc.EditLog(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePointsLog(c *gin.Context) {
	if err := s.pointsSvc.DeleteLog(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isPointsValidationError(err error) bool {
	return isAnyOf(err,
		pointsdomain.ErrInvalidOrganization,
		pointsdomain.ErrInvalidClient,
		pointsdomain.ErrInvalidAmount,
		pointsdomain.ErrInvalidAction,
		pointsdomain.ErrInvalidID,
	)
}
