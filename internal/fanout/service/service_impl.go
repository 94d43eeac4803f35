package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/config"
	fanoutdomain "github.com/smallbiznis/tradeway/internal/fanout/domain"
	"github.com/smallbiznis/tradeway/internal/lock"
	"github.com/smallbiznis/tradeway/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	"github.com/smallbiznis/tradeway/internal/order/sequence"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const runLockTTL = 2 * time.Minute

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Commerce    *config.CommerceConfigHolder
	Locker      lock.Locker
	Repo        fanoutdomain.Repository
	Orders      orderdomain.Repository
	Sequence    *sequence.Allocator
	CartRepo    cartdomain.Repository
	CatalogRepo catalogdomain.Repository
	Clients     clientdomain.Directory
	Metrics     *metrics.Metrics `optional:"true"`
}

// Service mirrors orders into supplier organizations by following shared
// product mappings hop by hop.
type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	commerce *config.CommerceConfigHolder
	locker   lock.Locker
	repo     fanoutdomain.Repository
	orders   orderdomain.Repository
	sequence *sequence.Allocator
	carts    cartdomain.Repository
	catalog  catalogdomain.Repository
	clients  clientdomain.Directory
	metrics  *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("fanout.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		commerce: p.Commerce,
		locker:   p.Locker,
		repo:     p.Repo,
		orders:   p.Orders,
		sequence: p.Sequence,
		carts:    p.CartRepo,
		catalog:  p.CatalogRepo,
		clients:  p.Clients,
		metrics:  p.Metrics,
	}
}

// NewFanOut exposes the service to order commit.
func NewFanOut(s *Service) orderdomain.FanOut { return s }

// upstreamItem is a quantity of one source product requested from a supplier.
type upstreamItem struct {
	sourceProductID snowflake.ID
	quantity        int64
}

type visitKey struct {
	orgID     snowflake.ID
	productID snowflake.ID
}

// hop is an order waiting to be fanned out. path holds the (org, product)
// pairs of the orders that led to it, root included.
type hop struct {
	order *orderdomain.Order
	depth int
	path  map[visitKey]bool
}

// extend returns a copy of path with the pairs of items in orgID added.
func extend(path map[visitKey]bool, orgID snowflake.ID, items []upstreamItem) map[visitKey]bool {
	next := make(map[visitKey]bool, len(path)+len(items))
	for key := range path {
		next[key] = true
	}
	for _, item := range items {
		next[visitKey{orgID, item.sourceProductID}] = true
	}
	return next
}

func (s *Service) Enqueue(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, lines []cartdomain.Line) (bool, error) {
	groups, err := s.upstreamGroups(ctx, tx, order, lines, nil)
	if err != nil {
		return false, err
	}
	if len(groups) == 0 {
		return false, nil
	}

	now := s.clock.Now()
	err = s.repo.Insert(ctx, tx, &fanoutdomain.Job{
		ID:          s.genID.Generate(),
		OrgID:       order.OrgID,
		RootOrderID: order.ID,
		Status:      fanoutdomain.JobPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// Run fans out the root order and records the outcome on its job. Upstream
// orders created by earlier attempts are reused.
func (s *Service) Run(ctx context.Context, rootOrderID snowflake.ID) (*orderdomain.FanOutReport, error) {
	release, err := s.locker.Acquire(ctx, "fanout:"+rootOrderID.String(), runLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire fan-out lock: %w", err)
	}
	defer release()

	job, err := s.repo.FindByRoot(ctx, s.db, rootOrderID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, fanoutdomain.ErrJobNotFound
	}
	report := &orderdomain.FanOutReport{JobID: job.ID, Orders: []orderdomain.ChildOrder{}}

	root, err := s.orders.FindByID(ctx, s.db, job.OrgID, rootOrderID)
	if err == nil && root == nil {
		err = orderdomain.ErrNotFound
	}
	if err == nil {
		err = s.walk(ctx, root, report)
	}

	job.Attempts++
	job.UpdatedAt = s.clock.Now()
	if err != nil {
		job.Status = fanoutdomain.JobFailed
		job.LastError = err.Error()
		report.Error = err.Error()
		s.metrics.RecordFanOutOrders(ctx, "failed", len(report.Orders))
	} else {
		job.Status = fanoutdomain.JobDone
		job.LastError = ""
		s.metrics.RecordFanOutOrders(ctx, "done", len(report.Orders))
	}
	report.Status = string(job.Status)

	if updateErr := s.repo.Update(ctx, s.db, job); updateErr != nil {
		return report, errors.Join(err, updateErr)
	}
	return report, err
}

// walk creates upstream orders breadth first. Every hop re-reads the
// mappings. A pair already on the hop's own path is a cycle and is not
// followed; branches that meet again at the same supplier each get an order.
func (s *Service) walk(ctx context.Context, root *orderdomain.Order, report *orderdomain.FanOutReport) error {
	maxDepth := s.commerce.Get().FanOut.MaxDepth

	rootLines, err := s.carts.ListLines(ctx, s.db, root.CartID)
	if err != nil {
		return err
	}
	rootPath := make(map[visitKey]bool, len(rootLines))
	for i := range rootLines {
		rootPath[visitKey{root.OrgID, rootLines[i].ProductID}] = true
		if rootLines[i].VariationID != 0 {
			rootPath[visitKey{root.OrgID, rootLines[i].VariationID}] = true
		}
	}

	queue := []hop{{order: root, depth: 0, path: rootPath}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		lines := rootLines
		if current.order.ID != root.ID {
			lines, err = s.carts.ListLines(ctx, s.db, current.order.CartID)
			if err != nil {
				return err
			}
		}
		groups, err := s.upstreamGroups(ctx, s.db, current.order, lines, current.path)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			continue
		}
		if current.depth+1 > maxDepth {
			s.log.Error("fan-out depth exceeded",
				zap.String("root_order_id", root.ID.String()),
				zap.String("org_id", current.order.OrgID.String()),
				zap.Int("hop", current.depth+1),
				zap.Int("max_depth", maxDepth),
			)
			return fmt.Errorf("%w: order %s at hop %d", fanoutdomain.ErrDepthExceeded, current.order.ID, current.depth+1)
		}

		for _, orgID := range sortedOrgs(groups) {
			child, err := s.materialize(ctx, root, current.order, orgID, groups[orgID])
			if err != nil {
				s.log.Error("upstream order failed",
					zap.String("root_order_id", root.ID.String()),
					zap.String("org_id", orgID.String()),
					zap.Int("hop", current.depth+1),
					zap.Error(err),
				)
				return err
			}
			report.Orders = append(report.Orders, orderdomain.ChildOrder{
				OrderID:        child.ID,
				OrgID:          child.OrgID,
				ParentOrderID:  current.order.ID,
				SequenceNumber: child.SequenceNumber,
				Subtotal:       child.Subtotal,
				Depth:          current.depth + 1,
			})
			queue = append(queue, hop{
				order: child,
				depth: current.depth + 1,
				path:  extend(current.path, orgID, groups[orgID]),
			})
		}
	}
	return nil
}

// upstreamGroups maps the money lines of order to supplier organizations.
// A variation mapping wins over a mapping of its parent product. Pairs in
// skip are dropped; skip may be nil.
func (s *Service) upstreamGroups(ctx context.Context, db *gorm.DB, order *orderdomain.Order, lines []cartdomain.Line, skip map[visitKey]bool) (map[snowflake.ID][]upstreamItem, error) {
	targets := make([]snowflake.ID, 0, len(lines)*2)
	for i := range lines {
		if lines[i].IsPoints() {
			continue
		}
		targets = append(targets, lines[i].ProductID)
		if lines[i].VariationID != 0 {
			targets = append(targets, lines[i].VariationID)
		}
	}
	if len(targets) == 0 {
		return nil, nil
	}
	mappings, err := s.catalog.ListMappingsByTargets(ctx, db, targets)
	if err != nil {
		return nil, err
	}
	byTarget := make(map[snowflake.ID]catalogdomain.SharedProductMapping, len(mappings))
	for _, m := range mappings {
		if m.TargetOrgID != order.OrgID {
			continue
		}
		if _, ok := byTarget[m.TargetProductID]; !ok {
			byTarget[m.TargetProductID] = m
		}
	}

	merged := make(map[visitKey]int64)
	for i := range lines {
		line := &lines[i]
		if line.IsPoints() {
			continue
		}
		mapping, ok := byTarget[line.VariationID]
		if line.VariationID == 0 || !ok {
			mapping, ok = byTarget[line.ProductID]
		}
		if !ok {
			continue
		}
		key := visitKey{mapping.SourceOrgID, mapping.SourceProductID}
		if skip[key] {
			continue
		}
		merged[key] += line.Quantity
	}

	groups := make(map[snowflake.ID][]upstreamItem)
	for key, quantity := range merged {
		groups[key.orgID] = append(groups[key.orgID], upstreamItem{sourceProductID: key.productID, quantity: quantity})
	}
	for orgID := range groups {
		items := groups[orgID]
		sort.Slice(items, func(i, j int) bool { return items[i].sourceProductID < items[j].sourceProductID })
	}
	return groups, nil
}

// materialize writes the client, cart, lines and order of one supplier in a
// single transaction, or returns the order an earlier run already wrote.
func (s *Service) materialize(ctx context.Context, root, parent *orderdomain.Order, orgID snowflake.ID, items []upstreamItem) (*orderdomain.Order, error) {
	var child *orderdomain.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.orders.FindChild(ctx, tx, parent.ID, orgID)
		if err != nil {
			return err
		}
		if existing != nil {
			child = existing
			return nil
		}

		buyer, err := s.clients.Find(ctx, tx, parent.OrgID, parent.ClientID)
		if err != nil {
			return err
		}
		if buyer == nil {
			return fanoutdomain.ErrMissingClient
		}
		client, err := s.clients.EnsureInOrg(ctx, tx, orgID, *buyer)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		cart := &cartdomain.Cart{
			ID:        s.genID.Generate(),
			OrgID:     orgID,
			ClientID:  client.ID,
			Country:   parent.Country,
			Status:    cartdomain.StatusClosed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		lines := make([]cartdomain.Line, 0, len(items))
		for _, item := range items {
			line, err := s.sourceLine(ctx, tx, orgID, parent.Country, item)
			if err != nil {
				return err
			}
			line.ID = s.genID.Generate()
			line.CartID = cart.ID
			line.CreatedAt = now
			line.UpdatedAt = now
			lines = append(lines, line)
		}
		cart.ContentHash = cartdomain.ContentHash(lines)
		if err := s.carts.InsertCart(ctx, tx, cart); err != nil {
			return err
		}
		for i := range lines {
			if err := s.carts.InsertLine(ctx, tx, &lines[i]); err != nil {
				return err
			}
		}

		subtotal, _ := cartdomain.Totals(lines)
		rootID := root.ID
		parentID := parent.ID
		child = &orderdomain.Order{
			ID:              s.genID.Generate(),
			OrgID:           orgID,
			ClientID:        client.ID,
			CartID:          cart.ID,
			Status:          orderdomain.StatusCommitted,
			Country:         parent.Country,
			Subtotal:        subtotal,
			ShippingCost:    root.ShippingCost,
			PaymentMethod:   root.PaymentMethod,
			ShippingAddress: root.ShippingAddress,
			Metadata: datatypes.NewJSONSlice([]orderdomain.MetadataEvent{
				{Type: "fan-out", Message: "mirrors order " + parent.ID.String(), At: now},
			}),
			ContentHash:   cart.ContentHash,
			ParentOrderID: &parentID,
			RootOrderID:   &rootID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.sequence.Insert(ctx, tx, child)
	})
	if err != nil {
		return nil, err
	}
	return child, nil
}

// sourceLine prices item at the supplier's own regular price for country.
// The source id may name a product or a variation.
func (s *Service) sourceLine(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, country string, item upstreamItem) (cartdomain.Line, error) {
	line := cartdomain.Line{OrgID: orgID, Quantity: item.quantity}
	missing := fmt.Errorf("%w: product %s in %s", fanoutdomain.ErrSourcePrice, item.sourceProductID, country)

	product, err := s.catalog.FindProductByID(ctx, tx, item.sourceProductID)
	if err != nil {
		return line, err
	}
	var (
		price decimal.Decimal
		ok    bool
	)
	if product != nil {
		if product.OrgID != orgID {
			return line, missing
		}
		line.ProductID = product.ID
		price, ok = product.Prices.Data().Regular(country)
	} else {
		variation, err := s.catalog.FindVariationByID(ctx, tx, item.sourceProductID)
		if err != nil {
			return line, err
		}
		if variation == nil || variation.OrgID != orgID {
			return line, missing
		}
		line.ProductID = variation.ProductID
		line.VariationID = variation.ID
		price, ok = variation.Prices.Data().Regular(country)
	}
	if !ok {
		return line, missing
	}
	line.UnitPrice = price
	return line, nil
}

func sortedOrgs(groups map[snowflake.ID][]upstreamItem) []snowflake.ID {
	ids := make([]snowflake.ID, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
