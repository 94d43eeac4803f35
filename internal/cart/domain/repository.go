package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	InsertCart(ctx context.Context, db *gorm.DB, cart *Cart) error
	FindCart(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Cart, error)
	// LockCart reads the cart with a row lock held until the transaction ends.
	LockCart(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Cart, error)
	FindOpenCart(ctx context.Context, db *gorm.DB, orgID, clientID snowflake.ID) (*Cart, error)
	UpdateCart(ctx context.Context, db *gorm.DB, cart *Cart) error

	ListLines(ctx context.Context, db *gorm.DB, cartID snowflake.ID) ([]Line, error)
	InsertLine(ctx context.Context, db *gorm.DB, line *Line) error
	UpdateLineQuantity(ctx context.Context, db *gorm.DB, id snowflake.ID, quantity int64) error
	UpdateLinePrice(ctx context.Context, db *gorm.DB, id snowflake.ID, unitPrice decimal.Decimal, pointsPrice int64) error
	DeleteLine(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
