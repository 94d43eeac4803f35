package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	OrgID    snowflake.ID
	ClientID snowflake.ID
	AfterID  snowflake.ID
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Order, error)
	Lock(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Order, error)
	FindChild(ctx context.Context, db *gorm.DB, parentID, orgID snowflake.ID) (*Order, error)
	ListChildren(ctx context.Context, db *gorm.DB, parentID snowflake.ID) ([]Order, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Order, error)
	Update(ctx context.Context, db *gorm.DB, order *Order) error

	// BumpSequence increments the counter and reports whether a row existed.
	BumpSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (bool, error)
	InsertSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID, value int64) error
	SetSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID, value int64) error
	CurrentSequence(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
	MaxSequenceNumber(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (int64, error)
}
