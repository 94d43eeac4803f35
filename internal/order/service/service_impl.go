package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	cartservice "github.com/smallbiznis/tradeway/internal/cart/service"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"github.com/smallbiznis/tradeway/internal/clock"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/tradeway/internal/notification/domain"
	"github.com/smallbiznis/tradeway/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	"github.com/smallbiznis/tradeway/internal/order/sequence"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	paymentdomain "github.com/smallbiznis/tradeway/internal/payment/domain"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"github.com/smallbiznis/tradeway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        orderdomain.Repository
	Sequence    *sequence.Allocator
	CartRepo    cartdomain.Repository
	CatalogRepo catalogdomain.Repository
	Clients     clientdomain.Directory
	Resolver    pricingdomain.Resolver
	Quoter      pricingdomain.Quoter
	Inventory   inventorydomain.Service
	Points      pointsdomain.Ledger
	FanOut      orderdomain.FanOut
	Gateway     paymentdomain.Gateway
	Notifier    notificationdomain.Publisher
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      orderdomain.Repository
	sequence  *sequence.Allocator
	carts     cartdomain.Repository
	catalog   catalogdomain.Repository
	clients   clientdomain.Directory
	resolver  pricingdomain.Resolver
	quoter    pricingdomain.Quoter
	inventory inventorydomain.Service
	points    pointsdomain.Ledger
	fanout    orderdomain.FanOut
	gateway   paymentdomain.Gateway
	notifier  notificationdomain.Publisher
	metrics   *metrics.Metrics
}

func New(p Params) orderdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		sequence:  p.Sequence,
		carts:     p.CartRepo,
		catalog:   p.CatalogRepo,
		clients:   p.Clients,
		resolver:  p.Resolver,
		quoter:    p.Quoter,
		inventory: p.Inventory,
		points:    p.Points,
		fanout:    p.FanOut,
		gateway:   p.Gateway,
		notifier:  p.Notifier,
		metrics:   p.Metrics,
	}
}

// Commit turns the caller's open cart into an order. Pricing, stock, points
// and the order row share one transaction; fan-out runs after it commits.
func (s *Service) Commit(ctx context.Context, req orderdomain.CommitRequest) (*orderdomain.CommitResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOrganization
	}
	clientID, ok := orgcontext.ClientIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidClient
	}
	cartID, err := snowflake.ParseString(strings.TrimSpace(req.CartID))
	if err != nil || cartID == 0 {
		return nil, orderdomain.ErrInvalidCart
	}
	shippingCost, err := parseAmount(req.ShippingCost)
	if err != nil {
		return nil, err
	}
	paymentMethod := strings.TrimSpace(req.PaymentMethod)
	if paymentMethod == "" {
		return nil, orderdomain.ErrInvalidPayment
	}
	address, err := normalizeAddress(req.ShippingAddress)
	if err != nil {
		return nil, err
	}

	var (
		order  *orderdomain.Order
		lines  []cartdomain.Line
		client *clientdomain.Client
		queued bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.carts.LockCart(ctx, tx, orgID, cartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return orderdomain.ErrCartNotFound
		}
		if cart.ClientID != clientID {
			return orderdomain.ErrCartNotOwned
		}
		if !cart.IsOpen() {
			return orderdomain.ErrCartClosed
		}
		client, err = s.clients.Find(ctx, tx, orgID, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return orderdomain.ErrInvalidClient
		}
		lines, err = s.carts.ListLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return orderdomain.ErrEmptyCart
		}

		if err := cartservice.RepriceMoneyLines(ctx, tx, s.quoter, s.carts, cart, client.Level(), lines); err != nil {
			return err
		}
		if err := s.recheckPointsLines(ctx, tx, cart, client, lines); err != nil {
			return err
		}

		demands, err := s.stockDemands(ctx, tx, cart, lines)
		if err != nil {
			return err
		}
		if err := s.inventory.Reserve(ctx, tx, orgID, demands); err != nil {
			return err
		}

		now := s.clock.Now()
		subtotal, points := cartdomain.Totals(lines)
		hash := cartdomain.ContentHash(lines)
		order = &orderdomain.Order{
			ID:               s.genID.Generate(),
			OrgID:            orgID,
			ClientID:         clientID,
			CartID:           cart.ID,
			Status:           orderdomain.StatusCommitted,
			Country:          cart.Country,
			Subtotal:         subtotal,
			PointsTotal:      points,
			ShippingCost:     shippingCost,
			PaymentMethod:    paymentMethod,
			PaymentReference: strings.TrimSpace(req.PaymentReference),
			ShippingAddress:  datatypes.NewJSONType(address),
			Metadata: datatypes.NewJSONSlice([]orderdomain.MetadataEvent{
				{Type: "committed", At: now},
			}),
			ContentHash: hash,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.sequence.Insert(ctx, tx, order); err != nil {
			return err
		}

		cart.Status = cartdomain.StatusClosed
		cart.ContentHash = hash
		cart.UpdatedAt = now
		if err := s.carts.UpdateCart(ctx, tx, cart); err != nil {
			return err
		}

		queued, err = s.fanout.Enqueue(ctx, tx, order, lines)
		return err
	})
	if err != nil {
		s.rejected(ctx, orgID, cartID, err)
		return nil, err
	}

	s.metrics.RecordOrderCommitted(ctx, orgID.String())
	s.log.Info("order committed",
		zap.String("org_id", orgID.String()),
		zap.String("order_id", order.ID.String()),
		zap.Int64("sequence_number", order.SequenceNumber),
		zap.Bool("fan_out", queued),
	)
	s.notifyCommitted(ctx, order, client)

	result := &orderdomain.CommitResult{Order: &orderdomain.View{Order: *order, Lines: lines}}
	if queued {
		report, err := s.fanout.Run(ctx, order.ID)
		if err != nil {
			s.log.Error("fan-out failed after commit",
				zap.String("root_order_id", order.ID.String()),
				zap.String("org_id", orgID.String()),
				zap.Error(err),
			)
		}
		result.FanOut = report
	}
	return result, nil
}

// recheckPointsLines re-applies level gating and settles the points
// difference when an affiliate price moved since the line was added.
func (s *Service) recheckPointsLines(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart, client *clientdomain.Client, lines []cartdomain.Line) error {
	for i := range lines {
		line := &lines[i]
		if !line.IsPoints() {
			continue
		}
		price, err := s.resolver.Resolve(ctx, tx, pricingdomain.ResolveRequest{
			OrgID:   cart.OrgID,
			ItemID:  line.AffiliateProductID,
			Country: cart.Country,
			LevelID: client.Level(),
		})
		if err != nil {
			return err
		}
		if price.Points == line.PointsPrice {
			continue
		}

		delta := (price.Points - line.PointsPrice) * line.Quantity
		description := "order repricing of cart " + cart.ID.String()
		if delta > 0 {
			_, err = s.points.Redeem(ctx, tx, cart.ClientID, cart.OrgID, delta, description)
		} else {
			_, err = s.points.Refund(ctx, tx, cart.ClientID, cart.OrgID, -delta, description)
		}
		if err != nil {
			return err
		}
		if err := s.carts.UpdateLinePrice(ctx, tx, line.ID, line.UnitPrice, price.Points); err != nil {
			return err
		}
		line.PointsPrice = price.Points
	}
	return nil
}

// stockDemands lists the stock-managed items of the cart.
func (s *Service) stockDemands(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart, lines []cartdomain.Line) ([]inventorydomain.Demand, error) {
	demands := make([]inventorydomain.Demand, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		if line.IsPoints() {
			item, err := s.catalog.FindAffiliateProduct(ctx, tx, cart.OrgID, line.AffiliateProductID)
			if err != nil {
				return nil, err
			}
			if item == nil {
				return nil, pricingdomain.ErrNotFound
			}
			if item.ManageStock {
				demands = append(demands, inventorydomain.Demand{
					ProductID: item.ID,
					Country:   cart.Country,
					Quantity:  line.Quantity,
				})
			}
			continue
		}

		product, err := s.catalog.FindProduct(ctx, tx, cart.OrgID, line.ProductID)
		if err != nil {
			return nil, err
		}
		if product == nil {
			return nil, pricingdomain.ErrNotFound
		}
		if product.ManageStock {
			demands = append(demands, inventorydomain.Demand{
				ProductID:       line.StockItemID(),
				Country:         cart.Country,
				Quantity:        line.Quantity,
				AllowBackorders: product.AllowBackorders,
			})
		}
	}
	return demands, nil
}

func (s *Service) rejected(ctx context.Context, orgID, cartID snowflake.ID, err error) {
	reason := rejectionReason(err)
	s.metrics.RecordCommitRejected(ctx, orgID.String(), reason)

	fields := []zap.Field{
		zap.String("org_id", orgID.String()),
		zap.String("cart_id", cartID.String()),
		zap.String("reason", reason),
		zap.Error(err),
	}
	switch reason {
	case "out_of_stock", "insufficient_balance":
		s.log.Info("order commit rejected", fields...)
	case "internal":
		s.log.Error("order commit failed", fields...)
	default:
		s.log.Warn("order commit rejected", fields...)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, inventorydomain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, pointsdomain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, pricingdomain.ErrLevelTooLow):
		return "permission_denied"
	case errors.Is(err, orderdomain.ErrCartNotFound),
		errors.Is(err, pricingdomain.ErrNotFound):
		return "not_found"
	case errors.Is(err, orderdomain.ErrCartNotOwned),
		errors.Is(err, orderdomain.ErrCartClosed),
		errors.Is(err, orderdomain.ErrEmptyCart),
		errors.Is(err, orderdomain.ErrInvalidClient),
		errors.Is(err, pricingdomain.ErrInvalidInput),
		errors.Is(err, pricingdomain.ErrVariationMissing):
		return "invalid_input"
	default:
		return "internal"
	}
}

func (s *Service) notifyCommitted(ctx context.Context, order *orderdomain.Order, client *clientdomain.Client) {
	data := map[string]any{
		"order_id":        order.ID.String(),
		"sequence_number": order.SequenceNumber,
		"subtotal":        order.Subtotal.StringFixed(2),
		"points_total":    order.PointsTotal,
	}
	var recipients []string
	if client != nil && client.Email != "" {
		recipients = []string{client.Email}
	}
	s.notifier.Publish(ctx, notificationdomain.Notification{
		Type:       notificationdomain.TypeOrderCommitted,
		OrgID:      order.OrgID,
		ClientID:   order.ClientID,
		Audience:   notificationdomain.AudienceClient,
		Channels:   []notificationdomain.Channel{notificationdomain.ChannelEmail, notificationdomain.ChannelInApp},
		Recipients: recipients,
		Data:       data,
	})
	s.notifier.Publish(ctx, notificationdomain.Notification{
		Type:     notificationdomain.TypeOrderCommitted,
		OrgID:    order.OrgID,
		Audience: notificationdomain.AudienceOrganization,
		Channels: []notificationdomain.Channel{notificationdomain.ChannelInApp, notificationdomain.ChannelWebhook},
		Data:     data,
	})
}

func (s *Service) Get(ctx context.Context, id string) (*orderdomain.View, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOrganization
	}
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	order, err := s.repo.FindByID(ctx, s.db, orgID, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil || !visibleTo(ctx, order) {
		return nil, orderdomain.ErrNotFound
	}
	return s.view(ctx, s.db, order)
}

func (s *Service) List(ctx context.Context, req orderdomain.ListRequest) (*orderdomain.ListResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOrganization
	}

	filter := orderdomain.ListFilter{OrgID: orgID}
	if clientID, ok := orgcontext.ClientIDFromContext(ctx); ok {
		filter.ClientID = clientID
	} else if v := strings.TrimSpace(req.ClientID); v != "" {
		clientID, err := parseID(v)
		if err != nil {
			return nil, err
		}
		filter.ClientID = clientID
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, orderdomain.ErrInvalidID
		}
		afterID, err := parseID(cursor.ID)
		if err != nil {
			return nil, err
		}
		filter.AfterID = afterID
	}
	limit := req.Size()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	items, info, err := pagination.Page(items, limit, func(o orderdomain.Order) pagination.Cursor {
		return pagination.Cursor{ID: o.ID.String()}
	})
	if err != nil {
		return nil, err
	}
	return &orderdomain.ListResponse{Orders: items, PageInfo: info}, nil
}

func (s *Service) view(ctx context.Context, db *gorm.DB, order *orderdomain.Order) (*orderdomain.View, error) {
	lines, err := s.carts.ListLines(ctx, db, order.CartID)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []cartdomain.Line{}
	}
	return &orderdomain.View{Order: *order, Lines: lines}, nil
}

// visibleTo hides other clients' orders from a client caller.
func visibleTo(ctx context.Context, order *orderdomain.Order) bool {
	clientID, ok := orgcontext.ClientIDFromContext(ctx)
	return !ok || order.ClientID == clientID
}

func parseAmount(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil || amount.IsNegative() {
		return decimal.Zero, orderdomain.ErrInvalidShippingCost
	}
	return amount, nil
}

func normalizeAddress(a orderdomain.Address) (orderdomain.Address, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Line1 = strings.TrimSpace(a.Line1)
	a.Line2 = strings.TrimSpace(a.Line2)
	a.City = strings.TrimSpace(a.City)
	a.Region = strings.TrimSpace(a.Region)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Phone = strings.TrimSpace(a.Phone)
	if a.Line1 == "" || a.Country == "" {
		return orderdomain.Address{}, orderdomain.ErrInvalidAddress
	}
	return a, nil
}

func eventType(value, fallback string) string {
	if t := slug.Make(value); t != "" {
		return t
	}
	return fallback
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, orderdomain.ErrInvalidID
	}
	return id, nil
}
