package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/tradeway/internal/clock"
	"github.com/smallbiznis/tradeway/internal/observability/metrics"
	"github.com/smallbiznis/tradeway/internal/orgcontext"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	"github.com/smallbiznis/tradeway/pkg/db"
	"github.com/smallbiznis/tradeway/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const balanceSavePoint = "points_balance_insert"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  pointsdomain.Repository

	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  pointsdomain.Repository

	metrics *metrics.Metrics
}

func New(p Params) pointsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("points.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		metrics: p.Metrics,
	}
}

// NewLedger exposes the transactional half to other services.
func NewLedger(svc pointsdomain.Service) pointsdomain.Ledger {
	return svc
}

// Apply accumulates the mutation onto the balance and writes its log row in tx.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, m pointsdomain.Mutation) (*pointsdomain.LogEntry, error) {
	if m.ClientID == 0 {
		return nil, pointsdomain.ErrInvalidClient
	}
	if m.OrgID == 0 {
		return nil, pointsdomain.ErrInvalidOrganization
	}
	action := slug.Make(m.Action)
	if action == "" {
		return nil, pointsdomain.ErrInvalidAction
	}

	if err := s.accumulate(ctx, tx, m.ClientID, m.OrgID, m.Points, m.Spent); err != nil {
		return nil, err
	}
	return s.writeLog(ctx, tx, m.ClientID, m.OrgID, m.Points, m.Spent, action, m.Description)
}

func (s *Service) Redeem(ctx context.Context, tx *gorm.DB, clientID, orgID snowflake.ID, points int64, description string) (*pointsdomain.LogEntry, error) {
	if points <= 0 {
		return nil, pointsdomain.ErrInvalidAmount
	}
	if err := s.debit(ctx, tx, clientID, orgID, points, points); err != nil {
		return nil, err
	}
	return s.writeLog(ctx, tx, clientID, orgID, -points, points, pointsdomain.ActionRedeem, description)
}

func (s *Service) Refund(ctx context.Context, tx *gorm.DB, clientID, orgID snowflake.ID, points int64, description string) (*pointsdomain.LogEntry, error) {
	if points <= 0 {
		return nil, pointsdomain.ErrInvalidAmount
	}
	return s.Apply(ctx, tx, pointsdomain.Mutation{
		ClientID:    clientID,
		OrgID:       orgID,
		Points:      points,
		Spent:       -points,
		Action:      pointsdomain.ActionRefund,
		Description: description,
	})
}

func (s *Service) GetBalance(ctx context.Context, clientID string) (*pointsdomain.Balance, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(clientID)
	if err != nil {
		return nil, pointsdomain.ErrInvalidClient
	}

	balance, err := s.repo.FindBalance(ctx, s.db, id, orgID)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return &pointsdomain.Balance{ClientID: id, OrgID: orgID}, nil
	}
	return balance, nil
}

func (s *Service) Adjust(ctx context.Context, req pointsdomain.AdjustRequest) (*pointsdomain.LogEntry, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	clientID, err := parseID(req.ClientID)
	if err != nil {
		return nil, pointsdomain.ErrInvalidClient
	}
	if req.Points == 0 {
		return nil, pointsdomain.ErrInvalidAmount
	}

	action := pointsdomain.ActionGrant
	if req.Points < 0 {
		action = pointsdomain.ActionDeduct
	}
	if strings.TrimSpace(req.Action) != "" {
		if action = slug.Make(req.Action); action == "" {
			return nil, pointsdomain.ErrInvalidAction
		}
	}

	var entry *pointsdomain.LogEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.Points > 0 {
			entry, err = s.Apply(ctx, tx, pointsdomain.Mutation{
				ClientID:    clientID,
				OrgID:       orgID,
				Points:      req.Points,
				Action:      action,
				Description: req.Description,
			})
			return err
		}
		if err := s.debit(ctx, tx, clientID, orgID, -req.Points, 0); err != nil {
			return err
		}
		entry, err = s.writeLog(ctx, tx, clientID, orgID, req.Points, 0, action, req.Description)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("points adjusted",
		zap.String("org_id", orgID.String()),
		zap.String("client_id", clientID.String()),
		zap.Int64("points", req.Points),
		zap.String("action", entry.Action),
	)
	return entry, nil
}

func (s *Service) ListLogs(ctx context.Context, req pointsdomain.ListLogsRequest) (*pointsdomain.ListLogsResponse, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	filter := pointsdomain.ListLogsFilter{OrgID: orgID}
	if strings.TrimSpace(req.ClientID) != "" {
		clientID, err := parseID(req.ClientID)
		if err != nil {
			return nil, pointsdomain.ErrInvalidClient
		}
		filter.ClientID = clientID
	}
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return nil, pointsdomain.ErrInvalidID
		}
		afterID, err := parseID(cursor.ID)
		if err != nil {
			return nil, pointsdomain.ErrInvalidID
		}
		filter.AfterID = afterID
	}
	pageSize := req.Size()
	filter.Limit = pageSize + 1

	items, err := s.repo.ListLogs(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	items, pageInfo, err := pagination.Page(items, pageSize, func(entry pointsdomain.LogEntry) pagination.Cursor {
		return pagination.Cursor{ID: entry.ID.String()}
	})
	if err != nil {
		return nil, err
	}
	return &pointsdomain.ListLogsResponse{Logs: items, PageInfo: pageInfo}, nil
}

// EditLog rewrites a historical row and moves the balance by the difference.
func (s *Service) EditLog(ctx context.Context, id string, req pointsdomain.EditLogRequest) (*pointsdomain.LogEntry, error) {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	logID, err := parseID(id)
	if err != nil {
		return nil, pointsdomain.ErrInvalidID
	}

	var entry *pointsdomain.LogEntry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err = s.repo.FindLog(ctx, tx, orgID, logID)
		if err != nil {
			return err
		}
		if entry == nil {
			return pointsdomain.ErrNotFound
		}

		deltaPoints := req.Points - entry.Points
		deltaSpent := req.Spent - entry.Spent
		if deltaPoints != 0 || deltaSpent != 0 {
			if err := s.accumulate(ctx, tx, entry.ClientID, orgID, deltaPoints, deltaSpent); err != nil {
				return err
			}
		}

		entry.Points = req.Points
		entry.Spent = req.Spent
		if req.Description != nil {
			entry.Description = strings.TrimSpace(*req.Description)
		}
		entry.UpdatedAt = s.clock.Now()
		return s.repo.UpdateLog(ctx, tx, entry)
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteLog marks a row deleted and reverses its effect on the balance.
func (s *Service) DeleteLog(ctx context.Context, id string) error {
	orgID, err := s.orgIDFromContext(ctx)
	if err != nil {
		return err
	}
	logID, err := parseID(id)
	if err != nil {
		return pointsdomain.ErrInvalidID
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := s.repo.FindLog(ctx, tx, orgID, logID)
		if err != nil {
			return err
		}
		if entry == nil {
			return pointsdomain.ErrNotFound
		}
		if err := s.accumulate(ctx, tx, entry.ClientID, orgID, -entry.Points, -entry.Spent); err != nil {
			return err
		}
		return s.repo.DeleteLog(ctx, tx, orgID, logID)
	})
}

// accumulate adds onto the balance row, creating it on first use. A
// concurrent first insert loses on the unique key and retries as an update.
func (s *Service) accumulate(ctx context.Context, tx *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) error {
	updated, err := s.repo.AddToBalance(ctx, tx, clientID, orgID, points, spent)
	if err != nil {
		return err
	}
	if updated {
		return nil
	}

	now := s.clock.Now()
	if err := tx.SavePoint(balanceSavePoint).Error; err != nil {
		return err
	}
	err = s.repo.InsertBalance(ctx, tx, &pointsdomain.Balance{
		ID:            s.genID.Generate(),
		ClientID:      clientID,
		OrgID:         orgID,
		PointsCurrent: points,
		PointsSpent:   spent,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err == nil {
		return nil
	}
	if !db.IsDuplicateKeyErr(err) {
		return err
	}
	if err := tx.RollbackTo(balanceSavePoint).Error; err != nil {
		return err
	}
	_, err = s.repo.AddToBalance(ctx, tx, clientID, orgID, points, spent)
	return err
}

func (s *Service) debit(ctx context.Context, tx *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) error {
	ok, err := s.repo.DebitBalance(ctx, tx, clientID, orgID, points, spent)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	balance, err := s.repo.FindBalance(ctx, tx, clientID, orgID)
	if err != nil {
		return err
	}
	var available int64
	if balance != nil {
		available = balance.PointsCurrent
	}
	return &pointsdomain.InsufficientBalanceError{Required: points, Available: available}
}

func (s *Service) writeLog(
	ctx context.Context,
	tx *gorm.DB,
	clientID, orgID snowflake.ID,
	points, spent int64,
	action, description string,
) (*pointsdomain.LogEntry, error) {
	now := s.clock.Now()
	entry := &pointsdomain.LogEntry{
		ID:          s.genID.Generate(),
		ClientID:    clientID,
		OrgID:       orgID,
		Points:      points,
		Spent:       spent,
		Action:      action,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertLog(ctx, tx, entry); err != nil {
		return nil, err
	}
	s.metrics.RecordPointsMutation(ctx, action)
	return entry, nil
}

func (s *Service) orgIDFromContext(ctx context.Context) (snowflake.ID, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return 0, pointsdomain.ErrInvalidOrganization
	}
	return orgID, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, pointsdomain.ErrInvalidID
	}
	return id, nil
}
