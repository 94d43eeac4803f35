package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Client is a customer account inside one organization. The same person
// (UserID) holds one Client per organization.
type Client struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID      `gorm:"column:org_id;not null;uniqueIndex:ux_clients_org_user" json:"organization_id"`
	UserID    snowflake.ID      `gorm:"not null;uniqueIndex:ux_clients_org_user" json:"user_id"`
	Name      string            `gorm:"not null" json:"name"`
	Email     string            `gorm:"not null" json:"email"`
	LevelID   *snowflake.ID     `json:"level_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }

// Level returns the client's affiliate level id or zero.
func (c *Client) Level() snowflake.ID {
	if c == nil || c.LevelID == nil {
		return 0
	}
	return *c.LevelID
}
