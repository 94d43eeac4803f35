// Package sequence hands out per-organization order numbers.
package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/internal/config"
	"github.com/smallbiznis/tradeway/internal/lock"
	orderdomain "github.com/smallbiznis/tradeway/internal/order/domain"
	"github.com/smallbiznis/tradeway/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	seedSavePoint  = "order_sequence_seed"
	orderSavePoint = "order_insert"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Locker   lock.Locker
	Commerce *config.CommerceConfigHolder
	Repo     orderdomain.Repository
}

// Allocator numbers orders under a named lock per organization. The counter
// row is updated inside the caller's transaction, so numbers from a rolled
// back transaction are reused.
type Allocator struct {
	log      *zap.Logger
	locker   lock.Locker
	commerce *config.CommerceConfigHolder
	repo     orderdomain.Repository
}

func New(p Params) *Allocator {
	return &Allocator{
		log:      p.Log.Named("order.sequence"),
		locker:   p.Locker,
		commerce: p.Commerce,
		repo:     p.Repo,
	}
}

func lockKey(orgID snowflake.ID) string {
	return "order-seq:" + orgID.String()
}

// Next returns the next sequence number of orgID.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (int64, error) {
	release, err := a.locker.Acquire(ctx, lockKey(orgID), a.commerce.Get().Sequence.LockTTL)
	if err != nil {
		return 0, fmt.Errorf("acquire sequence lock: %w", err)
	}
	defer release()

	bumped, err := a.repo.BumpSequence(ctx, tx, orgID)
	if err != nil {
		return 0, err
	}
	if !bumped {
		if err := a.seed(ctx, tx, orgID); err != nil {
			return 0, err
		}
	}
	return a.repo.CurrentSequence(ctx, tx, orgID)
}

// seed starts the counter after the highest number already in use.
func (a *Allocator) seed(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	highest, err := a.repo.MaxSequenceNumber(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if err := tx.SavePoint(seedSavePoint).Error; err != nil {
		return err
	}
	err = a.repo.InsertSequence(ctx, tx, orgID, highest+1)
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	if err := tx.RollbackTo(seedSavePoint).Error; err != nil {
		return err
	}
	_, err = a.repo.BumpSequence(ctx, tx, orgID)
	return err
}

// Resync moves the counter up to the highest number already used.
func (a *Allocator) Resync(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error {
	release, err := a.locker.Acquire(ctx, lockKey(orgID), a.commerce.Get().Sequence.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire sequence lock: %w", err)
	}
	defer release()

	highest, err := a.repo.MaxSequenceNumber(ctx, tx, orgID)
	if err != nil {
		return err
	}
	current, err := a.repo.CurrentSequence(ctx, tx, orgID)
	if err != nil {
		return err
	}
	if current >= highest {
		return nil
	}
	return a.repo.SetSequence(ctx, tx, orgID, highest)
}

// Insert numbers order and writes it. A number collision resyncs the counter
// and retries up to sequence.maxAttempts times.
func (a *Allocator) Insert(ctx context.Context, tx *gorm.DB, order *orderdomain.Order) error {
	attempts := a.commerce.Get().Sequence.MaxAttempts
	for attempt := 1; attempt <= attempts; attempt++ {
		number, err := a.Next(ctx, tx, order.OrgID)
		if err != nil {
			return err
		}
		order.SequenceNumber = number

		if err := tx.SavePoint(orderSavePoint).Error; err != nil {
			return err
		}
		err = a.repo.Insert(ctx, tx, order)
		if err == nil {
			return nil
		}
		if !db.IsDuplicateKeyErr(err) {
			return err
		}
		if err := tx.RollbackTo(orderSavePoint).Error; err != nil {
			return err
		}

		a.log.Warn("order sequence collision",
			zap.String("org_id", order.OrgID.String()),
			zap.Int64("sequence_number", number),
			zap.Int("attempt", attempt),
		)
		if err := a.Resync(ctx, tx, order.OrgID); err != nil {
			return err
		}
	}
	return errors.Join(orderdomain.ErrSequenceConflict, fmt.Errorf("gave up after %d attempts", attempts))
}
