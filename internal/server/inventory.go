package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
)

func (s *Server) SetStock(c *gin.Context) {
	var req inventorydomain.SetStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.inventorySvc.SetStock(c.Request.Context(), inventorydomain.SetStockRequest{
		WarehouseID: strings.TrimSpace(req.WarehouseID),
		ProductID:   strings.TrimSpace(req.ProductID),
		Country:     strings.TrimSpace(req.Country),
		Quantity:    req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListStock(c *gin.Context) {
	resp, err := s.inventorySvc.ListStock(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isInventoryValidationError(err error) bool {
	return isAnyOf(err,
		inventorydomain.ErrInvalidOrganization,
		inventorydomain.ErrInvalidProduct,
		inventorydomain.ErrInvalidWarehouse,
		inventorydomain.ErrInvalidCountry,
		inventorydomain.ErrInvalidQuantity,
	)
}
