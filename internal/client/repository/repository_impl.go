package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/tradeway/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() clientdomain.Repository {
	return &repo{}
}

const clientColumns = `id, org_id, user_id, name, email, level_id, metadata, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *clientdomain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (`+clientColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.OrgID,
		client.UserID,
		client.Name,
		client.Email,
		client.LevelID,
		client.Metadata,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, orgID, userID snowflake.ID) (*clientdomain.Client, error) {
	var client clientdomain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) UpdateLevel(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, levelID *snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE clients SET level_id = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		levelID,
		time.Now().UTC(),
		orgID,
		id,
	).Error
}
