package server

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/tradeway/internal/observability/logger"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"go.uber.org/zap"
)

const (
	HeaderOrg    = "X-Organization-ID"
	HeaderClient = "X-Client-ID"

	rateLimitReasonClientRate = "client-rate"
)

// RequireOrganization stores the organization named by the request header in
// the request context.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderOrg))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID <= 0 {
			AbortWithError(c, newValidationError("organization_id", "invalid_organization", "invalid organization id"))
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithOrgID(c.Request.Context(), orgID.Int64()))
		c.Next()
	}
}

// RequireClient identifies the calling client inside the organization.
func RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderClient))
		if raw == "" {
			AbortWithError(c, newValidationError("client_id", "client_required", "client id header is required"))
			return
		}
		clientID, err := snowflake.ParseString(raw)
		if err != nil || clientID <= 0 {
			AbortWithError(c, newValidationError("client_id", "invalid_client", "invalid client id"))
			return
		}
		c.Request = c.Request.WithContext(orgcontext.WithClientID(c.Request.Context(), clientID.Int64()))
		c.Next()
	}
}

// CartRateLimit throttles cart mutations per client. Reads pass through.
func (s *Server) CartRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cartLimiter == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		orgID, _ := orgcontext.OrgIDFromContext(ctx)
		clientID, _ := orgcontext.ClientIDFromContext(ctx)
		endpoint := normalizeRateLimitEndpoint(c)

		decision, err := s.cartLimiter.Allow(ctx, orgID.String(), clientID.String())
		if err != nil {
			obslogger.FromContext(ctx).Warn("cart rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

		if !decision.Allowed {
			obslogger.FromContext(ctx).Warn("cart rate limit exceeded",
				zap.String("reason", rateLimitReasonClientRate),
				zap.String("endpoint", endpoint),
			)
			if s.obsMetrics != nil {
				s.obsMetrics.RecordRateLimitDenied(ctx, orgID.String(), endpoint, rateLimitReasonClientRate)
			}
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(decision.ResetAt)))
			AbortWithError(c, ErrRateLimited)
			return
		}

		if s.obsMetrics != nil {
			s.obsMetrics.RecordRateLimitAllowed(ctx, orgID.String(), endpoint)
		}
		c.Next()
	}
}

func retryAfterSeconds(resetAt time.Time) int {
	wait := time.Until(resetAt).Seconds()
	if wait < 1 {
		return 1
	}
	return int(math.Ceil(wait))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
