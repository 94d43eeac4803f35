package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pricingdomain "github.com/smallbiznis/tradeway/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     cartdomain.Repository
	Clients  clientdomain.Directory
	Resolver pricingdomain.Resolver
	Quoter   pricingdomain.Quoter
	Points   pointsdomain.Ledger
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     cartdomain.Repository
	clients  clientdomain.Directory
	resolver pricingdomain.Resolver
	quoter   pricingdomain.Quoter
	points   pointsdomain.Ledger
}

func New(p Params) cartdomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("cart.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		clients:  p.Clients,
		resolver: p.Resolver,
		quoter:   p.Quoter,
		points:   p.Points,
	}
}

// mutation runs against a locked open cart owned by the caller and its lines.
type mutation func(tx *gorm.DB, cart *cartdomain.Cart, client *clientdomain.Client, lines []cartdomain.Line) ([]cartdomain.Line, error)

func (s *Service) Open(ctx context.Context, req cartdomain.OpenRequest) (*cartdomain.View, error) {
	orgID, clientID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		return nil, cartdomain.ErrInvalidCountry
	}

	var view *cartdomain.View
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, err := s.clients.Find(ctx, tx, orgID, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return cartdomain.ErrInvalidClient
		}

		cart, err := s.repo.FindOpenCart(ctx, tx, orgID, clientID)
		if err != nil {
			return err
		}
		if cart == nil {
			now := s.clock.Now()
			cart = &cartdomain.Cart{
				ID:          s.genID.Generate(),
				OrgID:       orgID,
				ClientID:    clientID,
				Country:     country,
				Status:      cartdomain.StatusOpen,
				ContentHash: cartdomain.ContentHash(nil),
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := s.repo.InsertCart(ctx, tx, cart); err != nil {
				return err
			}
		}
		lines, err := s.repo.ListLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		view = newView(cart, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) Get(ctx context.Context, id string) (*cartdomain.View, error) {
	orgID, clientID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	cartID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	cart, err := s.repo.FindCart(ctx, s.db, orgID, cartID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, cartdomain.ErrNotFound
	}
	if cart.ClientID != clientID {
		return nil, cartdomain.ErrNotOwner
	}
	lines, err := s.repo.ListLines(ctx, s.db, cart.ID)
	if err != nil {
		return nil, err
	}
	return newView(cart, lines), nil
}

func (s *Service) AddLine(ctx context.Context, cartID string, req cartdomain.AddLineRequest) (*cartdomain.View, error) {
	item, err := parseItem(req)
	if err != nil {
		return nil, err
	}
	if req.Quantity < 1 {
		return nil, cartdomain.ErrInvalidQuantity
	}

	return s.mutate(ctx, cartID, func(tx *gorm.DB, cart *cartdomain.Cart, client *clientdomain.Client, lines []cartdomain.Line) ([]cartdomain.Line, error) {
		price, err := s.resolver.Resolve(ctx, tx, pricingdomain.ResolveRequest{
			OrgID:       cart.OrgID,
			ItemID:      item.itemID(),
			VariationID: item.variationID,
			Country:     cart.Country,
			LevelID:     client.Level(),
		})
		if err != nil {
			return nil, err
		}

		existing := cartdomain.FindLine(lines, item.productID, item.variationID, item.affiliateID)
		if existing != nil {
			if existing.IsPoints() {
				if err := s.redeem(ctx, tx, cart, existing.PointsPrice*req.Quantity, existing.AffiliateProductID); err != nil {
					return nil, err
				}
			}
			existing.Quantity += req.Quantity
			if err := s.repo.UpdateLineQuantity(ctx, tx, existing.ID, existing.Quantity); err != nil {
				return nil, err
			}
			return lines, nil
		}

		now := s.clock.Now()
		line := cartdomain.Line{
			ID:                 s.genID.Generate(),
			CartID:             cart.ID,
			OrgID:              cart.OrgID,
			ProductID:          item.productID,
			VariationID:        item.variationID,
			AffiliateProductID: item.affiliateID,
			Quantity:           req.Quantity,
			UnitPrice:          price.UnitPrice,
			PointsPrice:        price.Points,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if line.IsPoints() {
			if err := s.redeem(ctx, tx, cart, price.Points*req.Quantity, line.AffiliateProductID); err != nil {
				return nil, err
			}
		}
		if err := s.repo.InsertLine(ctx, tx, &line); err != nil {
			return nil, err
		}
		return append(lines, line), nil
	})
}

// SetQuantity changes a line's quantity; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, cartID, lineID string, quantity int64) (*cartdomain.View, error) {
	if quantity < 0 {
		return nil, cartdomain.ErrInvalidQuantity
	}
	id, err := parseID(lineID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, func(tx *gorm.DB, cart *cartdomain.Cart, _ *clientdomain.Client, lines []cartdomain.Line) ([]cartdomain.Line, error) {
		idx := lineIndex(lines, id)
		if idx < 0 {
			return nil, cartdomain.ErrLineNotFound
		}
		if quantity == 0 {
			return s.removeAt(ctx, tx, cart, lines, idx)
		}

		line := &lines[idx]
		delta := quantity - line.Quantity
		if line.IsPoints() && delta > 0 {
			if err := s.redeem(ctx, tx, cart, line.PointsPrice*delta, line.AffiliateProductID); err != nil {
				return nil, err
			}
		}
		if line.IsPoints() && delta < 0 {
			if err := s.refund(ctx, tx, cart, line.PointsPrice*-delta, line.AffiliateProductID); err != nil {
				return nil, err
			}
		}
		line.Quantity = quantity
		if err := s.repo.UpdateLineQuantity(ctx, tx, line.ID, quantity); err != nil {
			return nil, err
		}
		return lines, nil
	})
}

func (s *Service) RemoveLine(ctx context.Context, cartID, lineID string) (*cartdomain.View, error) {
	id, err := parseID(lineID)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, cartID, func(tx *gorm.DB, cart *cartdomain.Cart, _ *clientdomain.Client, lines []cartdomain.Line) ([]cartdomain.Line, error) {
		idx := lineIndex(lines, id)
		if idx < 0 {
			return nil, cartdomain.ErrLineNotFound
		}
		return s.removeAt(ctx, tx, cart, lines, idx)
	})
}

func (s *Service) removeAt(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart, lines []cartdomain.Line, idx int) ([]cartdomain.Line, error) {
	line := lines[idx]
	if line.IsPoints() {
		if err := s.refund(ctx, tx, cart, line.PointsTotal(), line.AffiliateProductID); err != nil {
			return nil, err
		}
	}
	if err := s.repo.DeleteLine(ctx, tx, line.ID); err != nil {
		return nil, err
	}
	return append(lines[:idx], lines[idx+1:]...), nil
}

// mutate locks the cart, applies fn, then reprices tier lines and refreshes
// the content hash in the same transaction.
func (s *Service) mutate(ctx context.Context, cartID string, fn mutation) (*cartdomain.View, error) {
	orgID, clientID, err := identity(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(cartID)
	if err != nil {
		return nil, err
	}

	var view *cartdomain.View
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.repo.LockCart(ctx, tx, orgID, id)
		if err != nil {
			return err
		}
		if cart == nil {
			return cartdomain.ErrNotFound
		}
		if cart.ClientID != clientID {
			return cartdomain.ErrNotOwner
		}
		if !cart.IsOpen() {
			return cartdomain.ErrClosed
		}
		client, err := s.clients.Find(ctx, tx, orgID, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return cartdomain.ErrInvalidClient
		}

		lines, err := s.repo.ListLines(ctx, tx, cart.ID)
		if err != nil {
			return err
		}
		lines, err = fn(tx, cart, client, lines)
		if err != nil {
			return err
		}
		if err := RepriceMoneyLines(ctx, tx, s.quoter, s.repo, cart, client.Level(), lines); err != nil {
			return err
		}

		cart.ContentHash = cartdomain.ContentHash(lines)
		cart.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateCart(ctx, tx, cart); err != nil {
			return err
		}
		view = newView(cart, lines)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *Service) redeem(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart, points int64, affiliateID snowflake.ID) error {
	if points <= 0 {
		return nil
	}
	_, err := s.points.Redeem(ctx, tx, cart.ClientID, cart.OrgID, points,
		fmt.Sprintf("cart %s affiliate product %s", cart.ID, affiliateID))
	return err
}

func (s *Service) refund(ctx context.Context, tx *gorm.DB, cart *cartdomain.Cart, points int64, affiliateID snowflake.ID) error {
	if points <= 0 {
		return nil
	}
	_, err := s.points.Refund(ctx, tx, cart.ClientID, cart.OrgID, points,
		fmt.Sprintf("cart %s affiliate product %s", cart.ID, affiliateID))
	return err
}

type itemRef struct {
	productID   snowflake.ID
	variationID snowflake.ID
	affiliateID snowflake.ID
}

func (i itemRef) itemID() snowflake.ID {
	if i.affiliateID != 0 {
		return i.affiliateID
	}
	return i.productID
}

func parseItem(req cartdomain.AddLineRequest) (itemRef, error) {
	var item itemRef
	var err error
	if v := strings.TrimSpace(req.ProductID); v != "" {
		if item.productID, err = parseID(v); err != nil {
			return itemRef{}, cartdomain.ErrInvalidItem
		}
	}
	if v := strings.TrimSpace(req.VariationID); v != "" {
		if item.variationID, err = parseID(v); err != nil {
			return itemRef{}, cartdomain.ErrInvalidItem
		}
	}
	if v := strings.TrimSpace(req.AffiliateProductID); v != "" {
		if item.affiliateID, err = parseID(v); err != nil {
			return itemRef{}, cartdomain.ErrInvalidItem
		}
	}

	hasProduct := item.productID != 0
	hasAffiliate := item.affiliateID != 0
	if hasProduct == hasAffiliate {
		return itemRef{}, cartdomain.ErrInvalidItem
	}
	if hasAffiliate && item.variationID != 0 {
		return itemRef{}, cartdomain.ErrInvalidItem
	}
	return item, nil
}

func identity(ctx context.Context) (snowflake.ID, snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, 0, cartdomain.ErrInvalidOrganization
	}
	clientID, ok := orgcontext.ClientIDFromContext(ctx)
	if !ok {
		return 0, 0, cartdomain.ErrInvalidClient
	}
	return orgID, clientID, nil
}

func lineIndex(lines []cartdomain.Line, id snowflake.ID) int {
	for i := range lines {
		if lines[i].ID == id {
			return i
		}
	}
	return -1
}

func newView(cart *cartdomain.Cart, lines []cartdomain.Line) *cartdomain.View {
	if lines == nil {
		lines = []cartdomain.Line{}
	}
	subtotal, points := cartdomain.Totals(lines)
	return &cartdomain.View{Cart: *cart, Lines: lines, Subtotal: subtotal, PointsTotal: points}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, cartdomain.ErrInvalidID
	}
	return id, nil
}
