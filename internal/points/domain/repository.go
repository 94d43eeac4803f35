package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// AddToBalance accumulates onto the existing row and reports whether one existed.
	AddToBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) (bool, error)
	// DebitBalance takes points off the current balance and adds spent, only
	// when the current balance covers points.
	DebitBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points, spent int64) (bool, error)
	InsertBalance(ctx context.Context, db *gorm.DB, balance *Balance) error
	FindBalance(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID) (*Balance, error)

	InsertLog(ctx context.Context, db *gorm.DB, entry *LogEntry) error
	FindLog(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*LogEntry, error)
	UpdateLog(ctx context.Context, db *gorm.DB, entry *LogEntry) error
	DeleteLog(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) error
	ListLogs(ctx context.Context, db *gorm.DB, filter ListLogsFilter) ([]LogEntry, error)
}

type ListLogsFilter struct {
	OrgID    snowflake.ID
	ClientID snowflake.ID
	AfterID  snowflake.ID
	Limit    int
}
