package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
)

func (s *Server) CreateTierRule(c *gin.Context) {
	var req tierdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.tierSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTierRules(c *gin.Context) {
	resp, err := s.tierSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetTierRule(c *gin.Context) {
	resp, err := s.tierSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeactivateTierRule(c *gin.Context) {
	if err := s.tierSvc.Deactivate(c.Request.Context(), strings.TrimSpace(c.Param("id"))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func isTierValidationError(err error) bool {
	return isAnyOf(err,
		tierdomain.ErrInvalidOrganization,
		tierdomain.ErrInvalidName,
		tierdomain.ErrInvalidCountry,
		tierdomain.ErrInvalidProduct,
		tierdomain.ErrInvalidClient,
		tierdomain.ErrInvalidSteps,
		tierdomain.ErrInvalidID,
	)
}
