package service

import (
	"context"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/internal/clock"
	inventorydomain "github.com/smallbiznis/tradeway/internal/inventory/domain"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  inventorydomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  inventorydomain.Repository
}

func New(p Params) inventorydomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inventory.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

type stockKey struct {
	productID snowflake.ID
	country   string
}

type lockedItem struct {
	demand inventorydomain.Demand
	rows   []inventorydomain.WarehouseStock
}

func (s *Service) Reserve(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, demands []inventorydomain.Demand) error {
	merged := mergeDemands(demands)
	if len(merged) == 0 {
		return nil
	}

	items := make([]lockedItem, 0, len(merged))
	var failures []inventorydomain.StockFailure
	for _, demand := range merged {
		if demand.ProductID == 0 || demand.Quantity < 1 {
			return inventorydomain.ErrInvalidQuantity
		}
		rows, err := s.repo.LockRows(ctx, tx, orgID, demand.ProductID, demand.Country)
		if err != nil {
			return err
		}
		available := positiveSum(rows)
		if available < demand.Quantity && !demand.AllowBackorders {
			failures = append(failures, inventorydomain.StockFailure{
				ProductID: demand.ProductID,
				Country:   demand.Country,
				Requested: demand.Quantity,
				Available: available,
			})
			continue
		}
		items = append(items, lockedItem{demand: demand, rows: rows})
	}
	if len(failures) > 0 {
		s.log.Info("stock reservation rejected",
			zap.String("org_id", orgID.String()),
			zap.Int("failed_items", len(failures)),
		)
		return &inventorydomain.OutOfStockError{Failures: failures}
	}

	for _, item := range items {
		remaining := item.demand.Quantity
		for _, row := range item.rows {
			if remaining == 0 || row.Quantity <= 0 {
				break
			}
			take := min(row.Quantity, remaining)
			if err := s.repo.Decrement(ctx, tx, row.ID, take); err != nil {
				return err
			}
			remaining -= take
		}
		if remaining > 0 && len(item.rows) > 0 {
			// backordered units land on the largest row
			if err := s.repo.Decrement(ctx, tx, item.rows[0].ID, remaining); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) AdjustForCartLine(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, demand inventorydomain.Demand) error {
	if demand.ProductID == 0 {
		return inventorydomain.ErrInvalidProduct
	}
	country := strings.ToUpper(strings.TrimSpace(demand.Country))
	rows, err := s.repo.LockRows(ctx, tx, orgID, demand.ProductID, country)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	best := rows[0]
	next := best.Quantity - demand.Quantity
	if next < 0 && !demand.AllowBackorders {
		next = 0
	}
	return s.repo.SetQuantity(ctx, tx, best.ID, next)
}

func (s *Service) SetStock(ctx context.Context, req inventorydomain.SetStockRequest) (*inventorydomain.WarehouseStock, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, inventorydomain.ErrInvalidOrganization
	}
	warehouseID, err := parseID(req.WarehouseID)
	if err != nil {
		return nil, inventorydomain.ErrInvalidWarehouse
	}
	productID, err := parseID(req.ProductID)
	if err != nil {
		return nil, inventorydomain.ErrInvalidProduct
	}
	country := strings.ToUpper(strings.TrimSpace(req.Country))
	if country == "" {
		return nil, inventorydomain.ErrInvalidCountry
	}

	now := s.clock.Now()
	stock := &inventorydomain.WarehouseStock{
		ID:          s.genID.Generate(),
		OrgID:       orgID,
		WarehouseID: warehouseID,
		ProductID:   productID,
		Country:     country,
		Quantity:    req.Quantity,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.repo.Upsert(ctx, tx, stock)
	})
	if err != nil {
		return nil, err
	}

	rows, err := s.repo.ListByProduct(ctx, s.db, orgID, productID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].WarehouseID == warehouseID && rows[i].Country == country {
			return &rows[i], nil
		}
	}
	return stock, nil
}

func (s *Service) ListStock(ctx context.Context, productID string) ([]inventorydomain.WarehouseStock, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, inventorydomain.ErrInvalidOrganization
	}
	id, err := parseID(productID)
	if err != nil {
		return nil, inventorydomain.ErrInvalidProduct
	}
	return s.repo.ListByProduct(ctx, s.db, orgID, id)
}

// mergeDemands sums demands per item and orders them so concurrent
// reservations lock rows in the same sequence.
func mergeDemands(demands []inventorydomain.Demand) []inventorydomain.Demand {
	index := make(map[stockKey]int, len(demands))
	merged := make([]inventorydomain.Demand, 0, len(demands))
	for _, demand := range demands {
		demand.Country = strings.ToUpper(strings.TrimSpace(demand.Country))
		key := stockKey{productID: demand.ProductID, country: demand.Country}
		if i, ok := index[key]; ok {
			merged[i].Quantity += demand.Quantity
			merged[i].AllowBackorders = merged[i].AllowBackorders && demand.AllowBackorders
			continue
		}
		index[key] = len(merged)
		merged = append(merged, demand)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].ProductID == merged[j].ProductID {
			return merged[i].Country < merged[j].Country
		}
		return merged[i].ProductID < merged[j].ProductID
	})
	return merged
}

func positiveSum(rows []inventorydomain.WarehouseStock) int64 {
	var total int64
	for _, row := range rows {
		if row.Quantity > 0 {
			total += row.Quantity
		}
	}
	return total
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, inventorydomain.ErrInvalidProduct
	}
	return id, nil
}
