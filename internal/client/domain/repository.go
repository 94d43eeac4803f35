package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	FindByUser(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*Client, error)
	UpdateLevel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, levelID *snowflake.ID) error
}
