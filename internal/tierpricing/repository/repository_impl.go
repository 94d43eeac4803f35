package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/smallbiznis/tradeway/internal/tierpricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tierdomain.Repository {
	return &repo{}
}

const ruleColumns = `id, org_id, name, countries, product_ids, steps, targeted_client_ids, active, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, rule *tierdomain.Rule) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tier_pricing_rules (`+ruleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.ID,
		rule.OrgID,
		rule.Name,
		rule.Countries,
		rule.ProductIDs,
		rule.Steps,
		rule.TargetedClientIDs,
		rule.Active,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*tierdomain.Rule, error) {
	var rule tierdomain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM tier_pricing_rules WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&rule).Error
	if err != nil {
		return nil, err
	}
	if rule.ID == 0 {
		return nil, nil
	}
	return &rule, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]tierdomain.Rule, error) {
	var items []tierdomain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM tier_pricing_rules WHERE org_id = ? ORDER BY created_at DESC, id DESC`,
		orgID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]tierdomain.Rule, error) {
	var items []tierdomain.Rule
	err := db.WithContext(ctx).Raw(
		`SELECT `+ruleColumns+` FROM tier_pricing_rules
		 WHERE org_id = ? AND active = ?
		 ORDER BY created_at DESC, id DESC`,
		orgID,
		true,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tier_pricing_rules SET active = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		active,
		time.Now().UTC(),
		orgID,
		id,
	).Error
}
