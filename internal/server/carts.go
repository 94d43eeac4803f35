package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
)

// OpenCart returns the caller's open cart, creating one when none exists.
func (s *Server) OpenCart(c *gin.Context) {
	var req cartdomain.OpenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.cartSvc.Open(c.Request.Context(), cartdomain.OpenRequest{
		Country: strings.TrimSpace(req.Country),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetCart(c *gin.Context) {
	resp, err := s.cartSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddCartLine(c *gin.Context) {
	var req cartdomain.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.cartSvc.AddLine(c.Request.Context(), strings.TrimSpace(c.Param("id")), cartdomain.AddLineRequest{
		ProductID:          strings.TrimSpace(req.ProductID),
		VariationID:        strings.TrimSpace(req.VariationID),
		AffiliateProductID: strings.TrimSpace(req.AffiliateProductID),
		Quantity:           req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// SetCartLineQuantity replaces a line's quantity; zero removes the line.
func (s *Server) SetCartLineQuantity(c *gin.Context) {
	var req struct {
		Quantity *int64 `json:"quantity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Quantity == nil {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "quantity is required"))
		return
	}

	resp, err := s.cartSvc.SetQuantity(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("line_id")),
		*req.Quantity,
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RemoveCartLine(c *gin.Context) {
	resp, err := s.cartSvc.RemoveLine(c.Request.Context(),
		strings.TrimSpace(c.Param("id")),
		strings.TrimSpace(c.Param("line_id")),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isCartValidationError(err error) bool {
	return isAnyOf(err,
		cartdomain.ErrInvalidOrganization,
		cartdomain.ErrInvalidClient,
		cartdomain.ErrInvalidCountry,
		cartdomain.ErrInvalidItem,
		cartdomain.ErrInvalidQuantity,
		cartdomain.ErrInvalidID,
		cartdomain.ErrClosed,
	)
}
