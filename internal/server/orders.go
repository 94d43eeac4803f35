package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
)

// CommitOrder turns the caller's cart into an order. The response carries the
// fan-out report when upstream organizations were involved.
func (s *Server) CommitOrder(c *gin.Context) {
	var req orderdomain.CommitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.CartID = strings.TrimSpace(req.CartID)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	req.ShippingCost = strings.TrimSpace(req.ShippingCost)

	resp, err := s.orderSvc.Commit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListOrders(c *gin.Context) {
	var query orderdomain.ListRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	query.ClientID = strings.TrimSpace(query.ClientID)

	resp, err := s.orderSvc.List(c.Request.Context(), query)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetOrder(c *gin.Context) {
	resp, err := s.orderSvc.Get(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateOrderTracking(c *gin.Context) {
	var req orderdomain.UpdateTrackingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.UpdateTracking(c.Request.Context(), strings.TrimSpace(c.Param("id")), orderdomain.UpdateTrackingRequest{
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ChangeOrderPaymentMethod(c *gin.Context) {
	var req orderdomain.ChangePaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.ChangePaymentMethod(c.Request.Context(), strings.TrimSpace(c.Param("id")), orderdomain.ChangePaymentMethodRequest{
		PaymentMethod:    strings.TrimSpace(req.PaymentMethod),
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdateOrderShippingAddress(c *gin.Context) {
	var address orderdomain.Address
	if err := c.ShouldBindJSON(&address); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.UpdateShippingAddress(c.Request.Context(), strings.TrimSpace(c.Param("id")), address)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) PostOrderMessage(c *gin.Context) {
	var req orderdomain.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.PostMessage(c.Request.Context(), strings.TrimSpace(c.Param("id")), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AddOrderLine(c *gin.Context) {
	var req orderdomain.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.AddLine(c.Request.Context(), strings.TrimSpace(c.Param("id")), orderdomain.AddLineRequest{
		ProductID:   strings.TrimSpace(req.ProductID),
		VariationID: strings.TrimSpace(req.VariationID),
		Quantity:    req.Quantity,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func isOrderValidationError(err error) bool {
	return isAnyOf(err,
		orderdomain.ErrInvalidOrganization,
		orderdomain.ErrInvalidClient,
		orderdomain.ErrInvalidID,
		orderdomain.ErrInvalidCart,
		orderdomain.ErrEmptyCart,
		orderdomain.ErrInvalidShippingCost,
		orderdomain.ErrInvalidAddress,
		orderdomain.ErrInvalidPayment,
		orderdomain.ErrInvalidTracking,
		orderdomain.ErrInvalidMessage,
		orderdomain.ErrInvalidItem,
		orderdomain.ErrInvalidQuantity,
		orderdomain.ErrCartClosed,
	)
}
