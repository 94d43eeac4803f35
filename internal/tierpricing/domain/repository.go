package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, rule *Rule) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Rule, error)
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Rule, error)
	ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]Rule, error)
	SetActive(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, active bool) error
}
