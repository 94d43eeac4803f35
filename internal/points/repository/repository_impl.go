package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pointsdomain "github.com/smallbiznis/tradeway/internal/points/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pointsdomain.Repository {
	return &repo{}
}

const (
	balanceColumns = `id, client_id, org_id, points_current, points_spent, created_at, updated_at`
	logColumns     = `id, client_id, org_id, points, spent, action, description, created_at, updated_at`
)

func (r *repo) AddToBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE points_balances
		 SET points_current = points_current + ?, points_spent = points_spent + ?, updated_at = ?
		 WHERE client_id = ? AND org_id = ?`,
		points,
		spent,
		time.Now().UTC(),
		clientID,
		orgID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DebitBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE points_balances
		 SET points_current = points_current - ?, points_spent = points_spent + ?, updated_at = ?
		 WHERE client_id = ? AND org_id = ? AND points_current >= ?`,
		points,
		spent,
		time.Now().UTC(),
		clientID,
		orgID,
		points,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) InsertBalance(ctx context.Context, db *gorm.DB, balance *pointsdomain.Balance) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO points_balances (`+balanceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		balance.ID,
		balance.ClientID,
		balance.OrgID,
		balance.PointsCurrent,
		balance.PointsSpent,
		balance.CreatedAt,
		balance.UpdatedAt,
	).Error
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID) (*pointsdomain.Balance, error) {
	var balance pointsdomain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT `+balanceColumns+` FROM points_balances WHERE client_id = ? AND org_id = ?`,
		clientID,
		orgID,
	).Scan(&balance).Error
	if err != nil {
		return nil, err
	}
	if balance.ID == 0 {
		return nil, nil
	}
	return &balance, nil
}

func (r *repo) InsertLog(ctx context.Context, db *gorm.DB, entry *pointsdomain.LogEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO points_logs (`+logColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ClientID,
		entry.OrgID,
		entry.Points,
		entry.Spent,
		entry.Action,
		entry.Description,
		entry.CreatedAt,
		entry.UpdatedAt,
	).Error
}

func (r *repo) FindLog(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*pointsdomain.LogEntry, error) {
	var entry pointsdomain.LogEntry
	err := db.WithContext(ctx).Raw(
		`SELECT `+logColumns+` FROM points_logs WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		orgID,
		id,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) UpdateLog(ctx context.Context, db *gorm.DB, entry *pointsdomain.LogEntry) error {
	return db.WithContext(ctx).Exec(
		`UPDATE points_logs SET points = ?, spent = ?, description = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		entry.Points,
		entry.Spent,
		entry.Description,
		entry.UpdatedAt,
		entry.OrgID,
		entry.ID,
	).Error
}

// DeleteLog marks the row deleted. It stays in the table for audit.
func (r *repo) DeleteLog(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(
		`UPDATE points_logs SET deleted_at = ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND deleted_at IS NULL`,
		now,
		now,
		orgID,
		id,
	).Error
}

func (r *repo) ListLogs(ctx context.Context, db *gorm.DB, filter pointsdomain.ListLogsFilter) ([]pointsdomain.LogEntry, error) {
	query := db.WithContext(ctx).
		Table("points_logs").
		Select(logColumns).
		Where("org_id = ? AND deleted_at IS NULL", filter.OrgID)
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.AfterID != 0 {
		query = query.Where("id < ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var items []pointsdomain.LogEntry
	if err := query.Order("id DESC").Scan(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
