package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
)

func (s *Server) ListLevels(c *gin.Context) {
	resp, err := s.catalogSvc.ListLevels(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetProduct(c *gin.Context) {
	resp, err := s.catalogSvc.GetProduct(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAffiliateProduct(c *gin.Context) {
	resp, err := s.catalogSvc.GetAffiliateProduct(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// ResolvePrice quotes the base unit price of one product or affiliate product
// for the calling client's level.
func (s *Server) ResolvePrice(c *gin.Context) {
	var query priceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req, err := query.resolveRequest(c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	req.OrgID, _ = orgcontext.OrgIDFromContext(ctx)
	clientID, _ := orgcontext.ClientIDFromContext(ctx)

	tx := s.db.WithContext(ctx)
	client, err := s.clients.Find(ctx, tx, req.OrgID, clientID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	req.LevelID = client.Level()

	price, err := s.resolver.Resolve(ctx, tx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": price})
}

func isCatalogValidationError(err error) bool {
	return isAnyOf(err,
		catalogdomain.ErrInvalidOrganization,
		catalogdomain.ErrInvalidID,
	)
}
