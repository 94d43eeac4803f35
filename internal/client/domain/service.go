package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type CreateClientRequest struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	LevelID string `json:"level_id"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (Client, error)
	GetByID(ctx context.Context, id string) (Client, error)
	SetLevel(ctx context.Context, id string, levelID string) (Client, error)
}

// Directory resolves clients across organizations inside a caller's transaction.
type Directory interface {
	Find(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Client, error)
	// EnsureInOrg returns the client of person's user in orgID, creating it from person when missing.
	EnsureInOrg(ctx context.Context, db *gorm.DB, orgID snowflake.ID, person Client) (*Client, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidLevel        = errors.New("invalid_level")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
	ErrAlreadyExists       = errors.New("client_already_exists")
)
