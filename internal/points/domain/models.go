package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Balance holds the running totals of one client in one organization.
// It always equals the sum of the client's live log rows.
type Balance struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientID      snowflake.ID `json:"client_id" gorm:"not null;uniqueIndex:ux_points_balance_owner"`
	OrgID         snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_points_balance_owner"`
	PointsCurrent int64        `json:"points_current" gorm:"not null;default:0"`
	PointsSpent   int64        `json:"points_spent" gorm:"not null;default:0"`
	CreatedAt     time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Balance) TableName() string { return "points_balances" }

// LogEntry records one change. Points moves the current balance and Spent the
// spent counter. Rows with DeletedAt set are no longer live.
type LogEntry struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	ClientID    snowflake.ID `json:"client_id" gorm:"not null;index:ix_points_log_owner"`
	OrgID       snowflake.ID `json:"organization_id" gorm:"column:org_id;not null;index:ix_points_log_owner"`
	Points      int64        `json:"points" gorm:"not null;default:0"`
	Spent       int64        `json:"spent" gorm:"not null;default:0"`
	Action      string       `json:"action" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	DeletedAt   *time.Time   `json:"-" gorm:"index"`
}

func (LogEntry) TableName() string { return "points_logs" }

// Mutation is one balance change plus the log row describing it.
type Mutation struct {
	ClientID    snowflake.ID
	OrgID       snowflake.ID
	Points      int64
	Spent       int64
	Action      string
	Description string
}

const (
	ActionRedeem = "redeem"
	ActionRefund = "refund"
	ActionGrant  = "grant"
	ActionDeduct = "deduct"
)
