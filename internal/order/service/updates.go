package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	cartservice "github.com/smallbiznis/tradeway/internal/cart/service"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	notificationdomain "github.com/smallbiznis/tradeway/internal/notification/domain"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// edit runs fn against the locked order and stores the operational fields it changed.
func (s *Service) edit(ctx context.Context, id string, fn func(tx *gorm.DB, order *orderdomain.Order) error) (*orderdomain.View, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOrganization
	}
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var view *orderdomain.View
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := s.repo.Lock(ctx, tx, orgID, orderID)
		if err != nil {
			return err
		}
		if order == nil || !visibleTo(ctx, order) {
			return orderdomain.ErrNotFound
		}
		if err := fn(tx, order); err != nil {
			return err
		}
		order.UpdatedAt = s.clock.Now()
		if err := s.repo.Update(ctx, tx, order); err != nil {
			return err
		}
		view, err = s.view(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) appendEvent(order *orderdomain.Order, event orderdomain.MetadataEvent) {
	if event.At.IsZero() {
		event.At = s.clock.Now()
	}
	order.Metadata = append(order.Metadata, event)
}

func (s *Service) UpdateTracking(ctx context.Context, id string, req orderdomain.UpdateTrackingRequest) (*orderdomain.View, error) {
	tracking := strings.TrimSpace(req.TrackingNumber)
	if tracking == "" {
		return nil, orderdomain.ErrInvalidTracking
	}
	return s.edit(ctx, id, func(_ *gorm.DB, order *orderdomain.Order) error {
		order.TrackingNumber = tracking
		s.appendEvent(order, orderdomain.MetadataEvent{Type: "tracking-updated", Message: tracking})
		return nil
	})
}

// ChangePaymentMethod cancels the pending invoice at the gateway before
// switching. A gateway failure leaves the order untouched. The gateway is
// called outside the order transaction; if the reference moved on meanwhile
// the change is refused.
func (s *Service) ChangePaymentMethod(ctx context.Context, id string, req orderdomain.ChangePaymentMethodRequest) (*orderdomain.View, error) {
	method := strings.TrimSpace(req.PaymentMethod)
	if method == "" {
		return nil, orderdomain.ErrInvalidPayment
	}
	reference := strings.TrimSpace(req.PaymentReference)

	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, orderdomain.ErrInvalidOrganization
	}
	orderID, err := parseID(id)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.FindByID(ctx, s.db, orgID, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil || !visibleTo(ctx, current) {
		return nil, orderdomain.ErrNotFound
	}

	var cancelled string
	unchanged := current.PaymentMethod == method && current.PaymentReference == reference
	if !unchanged && current.PaymentReference != "" {
		if err := s.gateway.CancelInvoice(ctx, current.PaymentReference); err != nil {
			s.log.Warn("payment method change blocked",
				zap.String("org_id", current.OrgID.String()),
				zap.String("order_id", current.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		cancelled = current.PaymentReference
	}

	return s.edit(ctx, id, func(_ *gorm.DB, order *orderdomain.Order) error {
		if order.PaymentMethod == method && order.PaymentReference == reference {
			return nil
		}
		if order.PaymentReference != "" && order.PaymentReference != cancelled {
			return orderdomain.ErrPaymentChanged
		}
		s.appendEvent(order, orderdomain.MetadataEvent{
			Type:    "payment-method-changed",
			Message: order.PaymentMethod + " -> " + method,
		})
		order.PaymentMethod = method
		order.PaymentReference = reference
		return nil
	})
}

func (s *Service) UpdateShippingAddress(ctx context.Context, id string, address orderdomain.Address) (*orderdomain.View, error) {
	address, err := normalizeAddress(address)
	if err != nil {
		return nil, err
	}
	return s.edit(ctx, id, func(_ *gorm.DB, order *orderdomain.Order) error {
		order.ShippingAddress = datatypes.NewJSONType(address)
		s.appendEvent(order, orderdomain.MetadataEvent{Type: "address-updated"})
		return nil
	})
}

// PostMessage appends a message event and tells the order's client about it.
func (s *Service) PostMessage(ctx context.Context, id string, req orderdomain.PostMessageRequest) (*orderdomain.View, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, orderdomain.ErrInvalidMessage
	}
	event := orderdomain.MetadataEvent{
		Type:    eventType(req.Type, "message"),
		Message: message,
		Author:  strings.TrimSpace(req.Author),
	}

	view, err := s.edit(ctx, id, func(_ *gorm.DB, order *orderdomain.Order) error {
		s.appendEvent(order, event)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notificationdomain.Notification{
		Type:       notificationdomain.TypeOrderMessagePosted,
		OrgID:      view.OrgID,
		ClientID:   view.ClientID,
		Audience:   notificationdomain.AudienceClient,
		Channels:   []notificationdomain.Channel{notificationdomain.ChannelEmail, notificationdomain.ChannelInApp},
		Recipients: s.clientEmail(ctx, view.OrgID, view.ClientID),
		Data: map[string]any{
			"order_id":        view.ID.String(),
			"sequence_number": view.SequenceNumber,
			"type":            event.Type,
			"message":         message,
		},
	})
	return view, nil
}

// AddLine adds a money item to a committed order. Stock moves through the
// single-row adjustment instead of a full reservation. Tier prices of every
// money line are quoted again over the new quantities.
func (s *Service) AddLine(ctx context.Context, id string, req orderdomain.AddLineRequest) (*orderdomain.View, error) {
	if req.Quantity < 1 {
		return nil, orderdomain.ErrInvalidQuantity
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(req.ProductID))
	if err != nil || productID == 0 {
		return nil, orderdomain.ErrInvalidItem
	}
	var variationID snowflake.ID
	if v := strings.TrimSpace(req.VariationID); v != "" {
		if variationID, err = snowflake.ParseString(v); err != nil || variationID == 0 {
			return nil, orderdomain.ErrInvalidItem
		}
	}

	var added cartdomain.Line
	view, err := s.edit(ctx, id, func(tx *gorm.DB, order *orderdomain.Order) error {
		client, err := s.clients.Find(ctx, tx, order.OrgID, order.ClientID)
		if err != nil {
			return err
		}
		if client == nil {
			return orderdomain.ErrInvalidClient
		}
		price, err := s.resolver.Resolve(ctx, tx, pricingdomain.ResolveRequest{
			OrgID:       order.OrgID,
			ItemID:      productID,
			VariationID: variationID,
			Country:     order.Country,
			LevelID:     client.Level(),
		})
		if err != nil {
			return err
		}
		if price.IsPoints {
			return orderdomain.ErrInvalidItem
		}
		product, err := s.catalog.FindProduct(ctx, tx, order.OrgID, productID)
		if err != nil {
			return err
		}
		if product == nil {
			return pricingdomain.ErrNotFound
		}

		lines, err := s.carts.ListLines(ctx, tx, order.CartID)
		if err != nil {
			return err
		}
		if existing := cartdomain.FindLine(lines, productID, variationID, 0); existing != nil {
			existing.Quantity += req.Quantity
			if err := s.carts.UpdateLineQuantity(ctx, tx, existing.ID, existing.Quantity); err != nil {
				return err
			}
			added = *existing
		} else {
			now := s.clock.Now()
			added = cartdomain.Line{
				ID:          s.genID.Generate(),
				CartID:      order.CartID,
				OrgID:       order.OrgID,
				ProductID:   productID,
				VariationID: variationID,
				Quantity:    req.Quantity,
				UnitPrice:   price.UnitPrice,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.carts.InsertLine(ctx, tx, &added); err != nil {
				return err
			}
			lines = append(lines, added)
		}

		cart, err := s.carts.FindCart(ctx, tx, order.OrgID, order.CartID)
		if err != nil {
			return err
		}
		if cart == nil {
			return orderdomain.ErrCartNotFound
		}
		if err := cartservice.RepriceMoneyLines(ctx, tx, s.quoter, s.carts, cart, client.Level(), lines); err != nil {
			return err
		}

		if product.ManageStock {
			err := s.inventory.AdjustForCartLine(ctx, tx, order.OrgID, inventorydomain.Demand{
				ProductID:       added.StockItemID(),
				Country:         order.Country,
				Quantity:        req.Quantity,
				AllowBackorders: product.AllowBackorders,
			})
			if err != nil {
				return err
			}
		}

		order.Subtotal, order.PointsTotal = cartdomain.Totals(lines)
		order.ContentHash = cartdomain.ContentHash(lines)
		s.appendEvent(order, orderdomain.MetadataEvent{Type: "line-added", Message: productID.String()})
		return s.closeCart(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(ctx, notificationdomain.Notification{
		Type:     notificationdomain.TypeOrderLineAdded,
		OrgID:    view.OrgID,
		ClientID: view.ClientID,
		Audience: notificationdomain.AudienceOrganization,
		Channels: []notificationdomain.Channel{notificationdomain.ChannelInApp},
		Data: map[string]any{
			"order_id":        view.ID.String(),
			"sequence_number": view.SequenceNumber,
			"product_id":      productID.String(),
			"quantity":        req.Quantity,
		},
	})
	return view, nil
}

// closeCart keeps the order's cart hash in line with the order.
func (s *Service) closeCart(ctx context.Context, tx *gorm.DB, order *orderdomain.Order) error {
	cart, err := s.carts.FindCart(ctx, tx, order.OrgID, order.CartID)
	if err != nil {
		return err
	}
	if cart == nil {
		return orderdomain.ErrCartNotFound
	}
	cart.Status = cartdomain.StatusClosed
	cart.ContentHash = order.ContentHash
	cart.UpdatedAt = s.clock.Now()
	return s.carts.UpdateCart(ctx, tx, cart)
}

func (s *Service) clientEmail(ctx context.Context, orgID, clientID snowflake.ID) []string {
	client, err := s.clients.Find(ctx, s.db, orgID, clientID)
	if err != nil || client == nil || client.Email == "" {
		return nil
	}
	return []string{client.Email}
}
