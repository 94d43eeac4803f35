package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	cartdomain "github.com/smallbiznis/tradeway/internal/cart/domain"
	cartrepo "github.com/smallbiznis/tradeway/internal/cart/repository"
	catalogdomain "github.com/smallbiznis/tradeway/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/tradeway/internal/catalog/repository"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	clientrepo "github.com/smallbiznis/tradeway/internal/client/repository"
	clientservice "github.com/smallbiznis/tradeway/internal/client/service"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/config"
	fanoutdomain "github.com/smallbiznis/tradeway/internal/fanout/domain"
	fanoutrepo "github.com/smallbiznis/tradeway/internal/fanout/repository"
	"github.com/smallbiznis/tradeway/internal/lock"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	orderrepo "github.com/smallbiznis/tradeway/internal/order/repository"
	"github.com/smallbiznis/tradeway/internal/order/sequence"
	"github.com/smallbiznis/tradeway/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type fanoutFixture struct {
	t      *testing.T
	db     *gorm.DB
	node   *snowflake.Node
	svc    *Service
	userID snowflake.ID
}

func newFanoutFixture(t *testing.T, maxDepth int) *fanoutFixture {
	t.Helper()
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t,
		&catalogdomain.Product{},
		&catalogdomain.Variation{},
		&catalogdomain.AffiliateProduct{},
		&catalogdomain.AffiliateLevel{},
		&catalogdomain.SharedProductMapping{},
		&clientdomain.Client{},
		&cartdomain.Cart{},
		&cartdomain.Line{},
		&orderdomain.Order{},
		&orderdomain.OrderSequence{},
		&fanoutdomain.Job{},
	)
	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.DefaultCommerceConfig()
	cfg.FanOut.MaxDepth = maxDepth
	commerce := config.NewStaticCommerceConfigHolder(cfg)
	locker := lock.NewLocalLocker()
	catalog := catalogrepo.Provide()
	orders := orderrepo.Provide()

	clients := clientservice.New(clientservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: clientrepo.Provide(), CatalogRepo: catalog,
	})
	svc := New(Params{
		DB: db, Log: log, GenID: node, Clock: clk, Commerce: commerce, Locker: locker,
		Repo:        fanoutrepo.Provide(),
		Orders:      orders,
		Sequence:    sequence.New(sequence.Params{Log: log, Locker: locker, Commerce: commerce, Repo: orders}),
		CartRepo:    cartrepo.Provide(),
		CatalogRepo: catalog,
		Clients:     clients,
	})
	return &fanoutFixture{t: t, db: db, node: node, svc: svc, userID: node.Generate()}
}

func (f *fanoutFixture) product(orgID snowflake.ID, price string) snowflake.ID {
	f.t.Helper()
	id := f.node.Generate()
	prices := catalogdomain.PriceTable{}
	if price != "" {
		prices["US"] = catalogdomain.PriceEntry{Regular: decimal.RequireFromString(price)}
	}
	require.NoError(f.t, f.db.Create(&catalogdomain.Product{
		ID:     id,
		OrgID:  orgID,
		Name:   "product",
		Kind:   catalogdomain.ProductKindSimple,
		Prices: datatypes.NewJSONType(prices),
		Costs:  datatypes.NewJSONType(catalogdomain.CostTable{}),
	}).Error)
	return id
}

func (f *fanoutFixture) share(targetOrg, targetProduct, sourceOrg, sourceProduct snowflake.ID) {
	f.t.Helper()
	require.NoError(f.t, f.db.Create(&catalogdomain.SharedProductMapping{
		ID:              f.node.Generate(),
		TargetOrgID:     targetOrg,
		TargetProductID: targetProduct,
		SourceOrgID:     sourceOrg,
		SourceProductID: sourceProduct,
	}).Error)
}

type lineSpec struct {
	productID snowflake.ID
	quantity  int64
}

// rootOrder writes a committed order in orgID and enqueues its fan-out job.
func (f *fanoutFixture) rootOrder(orgID snowflake.ID, lines ...lineSpec) (*orderdomain.Order, bool) {
	f.t.Helper()
	client := clientdomain.Client{
		ID:       f.node.Generate(),
		OrgID:    orgID,
		UserID:   f.userID,
		Name:     "buyer",
		Email:    "buyer@example.com",
		Metadata: datatypes.JSONMap{},
	}
	require.NoError(f.t, f.db.Create(&client).Error)

	cart := cartdomain.Cart{ID: f.node.Generate(), OrgID: orgID, ClientID: client.ID, Country: "US", Status: cartdomain.StatusClosed}
	require.NoError(f.t, f.db.Create(&cart).Error)
	stored := make([]cartdomain.Line, 0, len(lines))
	for _, spec := range lines {
		line := cartdomain.Line{
			ID:        f.node.Generate(),
			CartID:    cart.ID,
			OrgID:     orgID,
			ProductID: spec.productID,
			Quantity:  spec.quantity,
			UnitPrice: decimal.RequireFromString("20"),
		}
		require.NoError(f.t, f.db.Create(&line).Error)
		stored = append(stored, line)
	}

	order := &orderdomain.Order{
		ID:             f.node.Generate(),
		OrgID:          orgID,
		ClientID:       client.ID,
		CartID:         cart.ID,
		SequenceNumber: 1,
		Status:         orderdomain.StatusCommitted,
		Country:        "US",
		PaymentMethod:  "card",
		ShippingCost:   decimal.RequireFromString("3"),
		ContentHash:    cartdomain.ContentHash(stored),
	}
	require.NoError(f.t, f.db.Create(order).Error)

	queued, err := f.svc.Enqueue(context.Background(), f.db, order, stored)
	require.NoError(f.t, err)
	return order, queued
}

func (f *fanoutFixture) job(rootID snowflake.ID) *fanoutdomain.Job {
	f.t.Helper()
	job, err := fanoutrepo.Provide().FindByRoot(context.Background(), f.db, rootID)
	require.NoError(f.t, err)
	require.NotNil(f.t, job)
	return job
}

func (f *fanoutFixture) countOrders() int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&orderdomain.Order{}).Count(&n).Error)
	return n
}

func TestRunFollowsSupplierChain(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB, orgC, orgD := f.node.Generate(), f.node.Generate(), f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "12.50")
	pC := f.product(orgC, "8")
	pD := f.product(orgD, "5")
	f.share(orgA, pA, orgB, pB)
	f.share(orgB, pB, orgC, pC)
	f.share(orgC, pC, orgD, pD)

	root, queued := f.rootOrder(orgA, lineSpec{pA, 2})
	require.True(t, queued)

	report, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, string(fanoutdomain.JobDone), report.Status)
	require.Len(t, report.Orders, 3)

	wantOrgs := []snowflake.ID{orgB, orgC, orgD}
	wantSubtotals := []string{"25", "16", "10"}
	parent := root.ID
	for i, child := range report.Orders {
		assert.Equal(t, i+1, child.Depth)
		assert.Equal(t, wantOrgs[i], child.OrgID)
		assert.Equal(t, parent, child.ParentOrderID)
		assert.Equal(t, int64(1), child.SequenceNumber)
		assert.True(t, child.Subtotal.Equal(decimal.RequireFromString(wantSubtotals[i])), child.Subtotal.String())
		parent = child.OrderID
	}

	stored, err := orderrepo.Provide().FindByID(context.Background(), f.db, orgD, report.Orders[2].OrderID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.NotNil(t, stored.RootOrderID)
	assert.Equal(t, root.ID, *stored.RootOrderID)
	assert.Equal(t, "card", stored.PaymentMethod)
	assert.True(t, stored.ShippingCost.Equal(decimal.RequireFromString("3")))

	var buyer clientdomain.Client
	require.NoError(t, f.db.Where("id = ?", stored.ClientID).First(&buyer).Error)
	assert.Equal(t, f.userID, buyer.UserID)
	assert.Equal(t, orgD, buyer.OrgID)

	job := f.job(root.ID)
	assert.Equal(t, fanoutdomain.JobDone, job.Status)
	assert.Equal(t, 1, job.Attempts)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB := f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "9")
	f.share(orgA, pA, orgB, pB)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 1})

	first, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	second, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)

	require.Len(t, second.Orders, 1)
	assert.Equal(t, first.Orders[0].OrderID, second.Orders[0].OrderID)
	assert.Equal(t, int64(2), f.countOrders())
	assert.Equal(t, 2, f.job(root.ID).Attempts)
}

func TestRunStopsAtMaxDepth(t *testing.T) {
	f := newFanoutFixture(t, 2)
	orgA, orgB, orgC, orgD := f.node.Generate(), f.node.Generate(), f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "10")
	pC := f.product(orgC, "5")
	pD := f.product(orgD, "1")
	f.share(orgA, pA, orgB, pB)
	f.share(orgB, pB, orgC, pC)
	f.share(orgC, pC, orgD, pD)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 1})

	report, err := f.svc.Run(context.Background(), root.ID)
	require.ErrorIs(t, err, fanoutdomain.ErrDepthExceeded)
	assert.Len(t, report.Orders, 2)
	assert.Equal(t, string(fanoutdomain.JobFailed), report.Status)
	assert.Equal(t, int64(3), f.countOrders())

	job := f.job(root.ID)
	assert.Equal(t, fanoutdomain.JobFailed, job.Status)
	assert.Contains(t, job.LastError, "fanout_depth_exceeded")
}

func TestRunGroupsLinesPerSupplier(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB := f.node.Generate(), f.node.Generate()
	pA1 := f.product(orgA, "20")
	pA2 := f.product(orgA, "30")
	pB1 := f.product(orgB, "2")
	pB2 := f.product(orgB, "3")
	f.share(orgA, pA1, orgB, pB1)
	f.share(orgA, pA2, orgB, pB2)
	root, _ := f.rootOrder(orgA, lineSpec{pA1, 2}, lineSpec{pA2, 4})

	report, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, report.Orders, 1)
	assert.True(t, report.Orders[0].Subtotal.Equal(decimal.RequireFromString("16")), report.Orders[0].Subtotal.String())

	stored, err := orderrepo.Provide().FindByID(context.Background(), f.db, orgB, report.Orders[0].OrderID)
	require.NoError(t, err)
	lines, err := cartrepo.Provide().ListLines(context.Background(), f.db, stored.CartID)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
	assert.Equal(t, cartdomain.ContentHash(lines), stored.ContentHash)
}

func TestRunTerminatesOnCycle(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB := f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "10")
	f.share(orgA, pA, orgB, pB)
	f.share(orgB, pB, orgA, pA)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 1})

	report, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, report.Orders, 1)
	assert.Equal(t, orgB, report.Orders[0].OrgID)
}

func TestRunFollowsEveryBranchIntoSharedSupplier(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB, orgC, orgD := f.node.Generate(), f.node.Generate(), f.node.Generate(), f.node.Generate()
	pA1 := f.product(orgA, "20")
	pA2 := f.product(orgA, "20")
	pB := f.product(orgB, "10")
	pC := f.product(orgC, "10")
	pD := f.product(orgD, "4")
	f.share(orgA, pA1, orgB, pB)
	f.share(orgA, pA2, orgC, pC)
	f.share(orgB, pB, orgD, pD)
	f.share(orgC, pC, orgD, pD)
	root, _ := f.rootOrder(orgA, lineSpec{pA1, 2}, lineSpec{pA2, 3})

	report, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Equal(t, string(fanoutdomain.JobDone), report.Status)
	require.Len(t, report.Orders, 4)

	var supplierOrders []orderdomain.Order
	require.NoError(t, f.db.Where("org_id = ?", orgD).Find(&supplierOrders).Error)
	require.Len(t, supplierOrders, 2)

	var units int64
	parents := map[snowflake.ID]bool{}
	for _, order := range supplierOrders {
		require.NotNil(t, order.ParentOrderID)
		parents[*order.ParentOrderID] = true
		lines, err := cartrepo.Provide().ListLines(context.Background(), f.db, order.CartID)
		require.NoError(t, err)
		for _, line := range lines {
			assert.Equal(t, pD, line.ProductID)
			units += line.Quantity
		}
	}
	assert.Equal(t, int64(5), units)
	assert.Len(t, parents, 2)

	again, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	assert.Len(t, again.Orders, 4)
	assert.Equal(t, int64(5), f.countOrders())
}

func TestRunStopsCycleBehindSharedSupplier(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB, orgC := f.node.Generate(), f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "10")
	pC := f.product(orgC, "5")
	f.share(orgA, pA, orgB, pB)
	f.share(orgB, pB, orgC, pC)
	f.share(orgC, pC, orgB, pB)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 1})

	report, err := f.svc.Run(context.Background(), root.ID)
	require.NoError(t, err)
	require.Len(t, report.Orders, 2)
	assert.Equal(t, orgB, report.Orders[0].OrgID)
	assert.Equal(t, orgC, report.Orders[1].OrgID)
}

func TestEnqueueSkipsOrdersWithoutSuppliers(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA := f.node.Generate()
	pA := f.product(orgA, "20")
	root, queued := f.rootOrder(orgA, lineSpec{pA, 1})
	assert.False(t, queued)

	_, err := f.svc.Run(context.Background(), root.ID)
	assert.ErrorIs(t, err, fanoutdomain.ErrJobNotFound)
}

func TestWorkerRetriesFailedJob(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB := f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "")
	f.share(orgA, pA, orgB, pB)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 3})

	_, err := f.svc.Run(context.Background(), root.ID)
	require.ErrorIs(t, err, fanoutdomain.ErrSourcePrice)
	assert.Equal(t, int64(1), f.countOrders())

	worker := NewWorker(f.svc)
	done, err := worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)
	assert.Equal(t, 2, f.job(root.ID).Attempts)

	prices := catalogdomain.PriceTable{"US": {Regular: decimal.RequireFromString("4")}}
	require.NoError(t, f.db.Model(&catalogdomain.Product{}).Where("id = ?", pB).
		Update("prices", datatypes.NewJSONType(prices)).Error)

	done, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, done)
	assert.Equal(t, int64(2), f.countOrders())

	job := f.job(root.ID)
	assert.Equal(t, fanoutdomain.JobDone, job.Status)
	assert.Empty(t, job.LastError)

	done, err = worker.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, done)
}

func TestWorkerGivesUpAfterMaxAttempts(t *testing.T) {
	f := newFanoutFixture(t, 10)
	orgA, orgB := f.node.Generate(), f.node.Generate()
	pA := f.product(orgA, "20")
	pB := f.product(orgB, "")
	f.share(orgA, pA, orgB, pB)
	root, _ := f.rootOrder(orgA, lineSpec{pA, 1})

	worker := NewWorker(f.svc)
	for range 7 {
		_, err := worker.RunOnce(context.Background())
		require.NoError(t, err)
	}
	job := f.job(root.ID)
	assert.Equal(t, fanoutdomain.JobFailed, job.Status)
	assert.Equal(t, config.DefaultCommerceConfig().FanOut.MaxAttempts, job.Attempts)
}
