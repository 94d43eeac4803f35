package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	pointsrepo "github.com/smallbiznis/tradeway/internal/points/repository"
	"github.com/smallbiznis/tradeway/internal/testutil"
	"github.com/smallbiznis/tradeway/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type pointsFixture struct {
	db       *gorm.DB
	svc      pointsdomain.Service
	ctx      context.Context
	orgID    snowflake.ID
	clientID snowflake.ID
}

func newPointsFixture(t *testing.T) *pointsFixture {
	t.Helper()
	node := testutil.MustNode(t)
	db := testutil.OpenDB(t, &pointsdomain.Balance{}, &pointsdomain.LogEntry{})
	orgID := node.Generate()
	return &pointsFixture{
		db: db,
		svc: New(Params{
			DB:    db,
			Log:   zap.NewNop(),
			GenID: node,
			Clock: clock.NewFakeClock(time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)),
			Repo:  pointsrepo.Provide(),
		}),
		ctx:      orgcontext.WithOrgID(context.Background(), int64(orgID)),
		orgID:    orgID,
		clientID: node.Generate(),
	}
}

func (f *pointsFixture) balance(t *testing.T) *pointsdomain.Balance {
	t.Helper()
	balance, err := f.svc.GetBalance(f.ctx, f.clientID.String())
	require.NoError(t, err)
	return balance
}

// assertBalanceMatchesLogs checks the balance is the sum of live log rows.
func (f *pointsFixture) assertBalanceMatchesLogs(t *testing.T) {
	t.Helper()
	var sums struct {
		Points int64
		Spent  int64
	}
	require.NoError(t, f.db.Raw(
		`SELECT COALESCE(SUM(points), 0) AS points, COALESCE(SUM(spent), 0) AS spent
		 FROM points_logs WHERE client_id = ? AND org_id = ? AND deleted_at IS NULL`,
		f.clientID, f.orgID,
	).Scan(&sums).Error)

	balance := f.balance(t)
	assert.Equal(t, sums.Points, balance.PointsCurrent)
	assert.Equal(t, sums.Spent, balance.PointsSpent)
}

func (f *pointsFixture) grant(t *testing.T, points int64) {
	t.Helper()
	_, err := f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{ClientID: f.clientID.String(), Points: points})
	require.NoError(t, err)
}

func TestApplyAccumulatesAndLogs(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 500)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		if _, err := f.svc.Redeem(context.Background(), tx, f.clientID, f.orgID, 120, "reward"); err != nil {
			return err
		}
		_, err := f.svc.Refund(context.Background(), tx, f.clientID, f.orgID, 20, "line reduced")
		return err
	})
	require.NoError(t, err)

	balance := f.balance(t)
	assert.Equal(t, int64(400), balance.PointsCurrent)
	assert.Equal(t, int64(100), balance.PointsSpent)
	f.assertBalanceMatchesLogs(t)

	resp, err := f.svc.ListLogs(f.ctx, pointsdomain.ListLogsRequest{ClientID: f.clientID.String()})
	require.NoError(t, err)
	require.Len(t, resp.Logs, 3)
	assert.Equal(t, pointsdomain.ActionRefund, resp.Logs[0].Action)
	assert.Equal(t, pointsdomain.ActionRedeem, resp.Logs[1].Action)
	assert.Equal(t, pointsdomain.ActionGrant, resp.Logs[2].Action)
}

func TestRedeemInsufficientBalance(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 50)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Redeem(context.Background(), tx, f.clientID, f.orgID, 80, "too much")
		return err
	})
	require.ErrorIs(t, err, pointsdomain.ErrInsufficientBalance)

	var balanceErr *pointsdomain.InsufficientBalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.Equal(t, int64(80), balanceErr.Required)
	assert.Equal(t, int64(50), balanceErr.Available)

	assert.Equal(t, int64(50), f.balance(t).PointsCurrent)
	f.assertBalanceMatchesLogs(t)
}

func TestRedeemWithoutBalanceRow(t *testing.T) {
	f := newPointsFixture(t)

	err := f.db.Transaction(func(tx *gorm.DB) error {
		_, err := f.svc.Redeem(context.Background(), tx, f.clientID, f.orgID, 1, "")
		return err
	})
	var balanceErr *pointsdomain.InsufficientBalanceError
	require.True(t, errors.As(err, &balanceErr))
	assert.Equal(t, int64(0), balanceErr.Available)
}

func TestConcurrentRedeemNeverGoesNegative(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 100)

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		won int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := f.db.Transaction(func(tx *gorm.DB) error {
				_, err := f.svc.Redeem(context.Background(), tx, f.clientID, f.orgID, 30, "race")
				return err
			})
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
				return
			}
			if !errors.Is(err, pointsdomain.ErrInsufficientBalance) {
				t.Errorf("redeem: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, won)
	balance := f.balance(t)
	assert.Equal(t, int64(10), balance.PointsCurrent)
	assert.Equal(t, int64(90), balance.PointsSpent)
	f.assertBalanceMatchesLogs(t)
}

func TestEditAndDeleteLogRecomputeBalance(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 100)
	entry, err := f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{ClientID: f.clientID.String(), Points: 40, Action: "Birthday Bonus"})
	require.NoError(t, err)
	assert.Equal(t, "birthday-bonus", entry.Action)

	description := "corrected"
	edited, err := f.svc.EditLog(f.ctx, entry.ID.String(), pointsdomain.EditLogRequest{Points: 25, Description: &description})
	require.NoError(t, err)
	assert.Equal(t, int64(25), edited.Points)
	assert.Equal(t, int64(125), f.balance(t).PointsCurrent)
	f.assertBalanceMatchesLogs(t)

	require.NoError(t, f.svc.DeleteLog(f.ctx, entry.ID.String()))
	assert.Equal(t, int64(100), f.balance(t).PointsCurrent)
	f.assertBalanceMatchesLogs(t)

	assert.ErrorIs(t, f.svc.DeleteLog(f.ctx, entry.ID.String()), pointsdomain.ErrNotFound)

	var kept pointsdomain.LogEntry
	require.NoError(t, f.db.First(&kept, "id = ?", entry.ID).Error)
	require.NotNil(t, kept.DeletedAt)
	assert.Equal(t, int64(25), kept.Points)

	resp, err := f.svc.ListLogs(f.ctx, pointsdomain.ListLogsRequest{ClientID: f.clientID.String()})
	require.NoError(t, err)
	for _, live := range resp.Logs {
		assert.NotEqual(t, entry.ID, live.ID)
	}

	_, err = f.svc.EditLog(f.ctx, entry.ID.String(), pointsdomain.EditLogRequest{Points: 5})
	assert.ErrorIs(t, err, pointsdomain.ErrNotFound)
}

func TestAdjustDeductCannotOverdraw(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 10)

	_, err := f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{ClientID: f.clientID.String(), Points: -11})
	assert.ErrorIs(t, err, pointsdomain.ErrInsufficientBalance)

	entry, err := f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{ClientID: f.clientID.String(), Points: -4})
	require.NoError(t, err)
	assert.Equal(t, pointsdomain.ActionDeduct, entry.Action)
	assert.Equal(t, int64(6), f.balance(t).PointsCurrent)
	f.assertBalanceMatchesLogs(t)
}

func TestAdjustNormalizesAction(t *testing.T) {
	f := newPointsFixture(t)
	f.grant(t, 10)

	entry, err := f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{
		ClientID: f.clientID.String(),
		Points:   -2,
		Action:   "Loyalty Correction",
	})
	require.NoError(t, err)
	assert.Equal(t, "loyalty-correction", entry.Action)

	_, err = f.svc.Adjust(f.ctx, pointsdomain.AdjustRequest{ClientID: f.clientID.String(), Points: -1, Action: "!!!"})
	assert.ErrorIs(t, err, pointsdomain.ErrInvalidAction)
	assert.Equal(t, int64(8), f.balance(t).PointsCurrent)
	f.assertBalanceMatchesLogs(t)
}

func TestListLogsPaginates(t *testing.T) {
	f := newPointsFixture(t)
	for i := 0; i < 5; i++ {
		f.grant(t, 1)
	}

	first, err := f.svc.ListLogs(f.ctx, pointsdomain.ListLogsRequest{Pagination: pagination.Pagination{PageSize: 3}})
	require.NoError(t, err)
	require.Len(t, first.Logs, 3)
	require.True(t, first.PageInfo.HasMore)

	second, err := f.svc.ListLogs(f.ctx, pointsdomain.ListLogsRequest{
		Pagination: pagination.Pagination{PageSize: 3, PageToken: first.PageInfo.NextPageToken},
	})
	require.NoError(t, err)
	assert.Len(t, second.Logs, 2)
	assert.False(t, second.PageInfo.HasMore)
	assert.Less(t, int64(second.Logs[0].ID), int64(first.Logs[2].ID))
}
