package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"github.com/smallbiznis/tradeway/internal/config"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	"github.com/smallbiznis/tradeway/internal/observability"
	obslogger "github.com/smallbiznis/tradeway/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tradeway/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tradeway/internal/observability/tracing"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"github.com/smallbiznis/tradeway/internal/ratelimit"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) {
		s.RegisterAPIRoutes()
	}),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	db           *gorm.DB
	catalogSvc   catalogdomain.Service
	tierSvc      tierdomain.Service
	inventorySvc inventorydomain.Service
	pointsSvc    pointsdomain.Service
	clientSvc    clientdomain.Service
	clients      clientdomain.Directory
	resolver     pricingdomain.Resolver
	cartSvc      cartdomain.Service
	orderSvc     orderdomain.Service
	cartLimiter  *ratelimit.CartLimiter
	obsMetrics   *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	DB           *gorm.DB
	CatalogSvc   catalogdomain.Service
	TierSvc      tierdomain.Service
	InventorySvc inventorydomain.Service
	PointsSvc    pointsdomain.Service
	ClientSvc    clientdomain.Service
	Clients      clientdomain.Directory
	Resolver     pricingdomain.Resolver
	CartSvc      cartdomain.Service
	OrderSvc     orderdomain.Service
	CartLimiter  *ratelimit.CartLimiter `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics    `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		db:           p.DB,
		catalogSvc:   p.CatalogSvc,
		tierSvc:      p.TierSvc,
		inventorySvc: p.InventorySvc,
		pointsSvc:    p.PointsSvc,
		clientSvc:    p.ClientSvc,
		clients:      p.Clients,
		resolver:     p.Resolver,
		cartSvc:      p.CartSvc,
		orderSvc:     p.OrderSvc,
		cartLimiter:  p.CartLimiter,
		obsMetrics:   p.ObsMetrics,
	}
}

// RegisterAPIRoutes mounts the commerce API. Every route requires an
// organization; shopping routes also require the calling client.
func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/v1", RequireOrganization())

	api.GET("/levels", s.ListLevels)
	api.GET("/products/:id", s.GetProduct)
	api.GET("/products/:id/price", RequireClient(), s.ResolvePrice)
	api.GET("/products/:id/stock", s.ListStock)
	api.GET("/affiliate-products/:id", s.GetAffiliateProduct)
	api.PUT("/stock", s.SetStock)

	api.POST("/tier-rules", s.CreateTierRule)
	api.GET("/tier-rules", s.ListTierRules)
	api.GET("/tier-rules/:id", s.GetTierRule)
	api.POST("/tier-rules/:id/deactivate", s.DeactivateTierRule)

	api.POST("/clients", s.CreateClient)
	api.GET("/clients/:id", s.GetClient)
	api.PUT("/clients/:id/level", s.SetClientLevel)
	api.GET("/clients/:id/points", s.GetPointsBalance)

	api.POST("/points/adjustments", s.AdjustPoints)
	api.GET("/points/logs", s.ListPointsLogs)
	api.PATCH("/points/logs/:id", s.EditPointsLog)
	api.DELETE("/points/logs/:id", s.DeletePointsLog)

	carts := api.Group("/carts", RequireClient(), s.CartRateLimit())
	carts.POST("", s.OpenCart)
	carts.GET("/:id", s.GetCart)
	carts.POST("/:id/lines", s.AddCartLine)
	carts.PATCH("/:id/lines/:line_id", s.SetCartLineQuantity)
	carts.DELETE("/:id/lines/:line_id", s.RemoveCartLine)

	api.POST("/orders", RequireClient(), s.CommitOrder)
	api.GET("/orders", s.ListOrders)
	api.GET("/orders/:id", s.GetOrder)
	api.PUT("/orders/:id/tracking", s.UpdateOrderTracking)
	api.PUT("/orders/:id/payment-method", s.ChangeOrderPaymentMethod)
	api.PUT("/orders/:id/shipping-address", s.UpdateOrderShippingAddress)
	api.POST("/orders/:id/messages", s.PostOrderMessage)
	api.POST("/orders/:id/lines", s.AddOrderLine)
}
