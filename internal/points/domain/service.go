package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tradeway/pkg/db/pagination"
	"gorm.io/gorm"
)

// Ledger is the transactional side used by carts and orders.
type Ledger interface {
	Apply(ctx context.Context, db *gorm.DB, m Mutation) (*LogEntry, error)
	Redeem(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points int64, description string) (*LogEntry, error)
	Refund(ctx context.Context, db *gorm.DB, clientID, orgID snowflake.ID, points int64, description string) (*LogEntry, error)
}

type Service interface {
	Ledger

	GetBalance(ctx context.Context, clientID string) (*Balance, error)
	Adjust(ctx context.Context, req AdjustRequest) (*LogEntry, error)
	ListLogs(ctx context.Context, req ListLogsRequest) (*ListLogsResponse, error)
	EditLog(ctx context.Context, id string, req EditLogRequest) (*LogEntry, error)
	DeleteLog(ctx context.Context, id string) error
}

// AdjustRequest grants (positive) or deducts (negative) points by hand.
type AdjustRequest struct {
	ClientID    string `json:"client_id"`
	Points      int64  `json:"points"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

type EditLogRequest struct {
	Points      int64   `json:"points"`
	Spent       int64   `json:"spent"`
	Description *string `json:"description"`
}

type ListLogsRequest struct {
	ClientID string `form:"client_id"`
	pagination.Pagination
}

type ListLogsResponse struct {
	Logs     []LogEntry           `json:"logs"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}
