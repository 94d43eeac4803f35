package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Step prices every unit at Price when the total quantity falls in [From, To].
// To == 0 leaves the step open ended.
type Step struct {
	From  int64           `json:"from"`
	To    int64           `json:"to"`
	Price decimal.Decimal `json:"price"`
}

func (s Step) contains(qty int64) bool {
	if qty < s.From {
		return false
	}
	return s.To == 0 || qty <= s.To
}

type Rule struct {
	ID                snowflake.ID                      `json:"id" gorm:"primaryKey"`
	OrgID             snowflake.ID                      `json:"organization_id" gorm:"column:org_id;not null;index"`
	Name              string                            `json:"name" gorm:"type:text;not null"`
	Countries         datatypes.JSONSlice[string]       `json:"countries" gorm:"type:jsonb"`
	ProductIDs        datatypes.JSONSlice[snowflake.ID] `json:"product_ids" gorm:"type:jsonb"`
	Steps             datatypes.JSONSlice[Step]         `json:"steps" gorm:"type:jsonb"`
	TargetedClientIDs datatypes.JSONSlice[snowflake.ID] `json:"targeted_client_ids" gorm:"type:jsonb"`
	Active            bool                              `json:"active" gorm:"not null;default:true"`
	CreatedAt         time.Time                         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time                         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Rule) TableName() string { return "tier_pricing_rules" }

func (r *Rule) coversCountry(country string) bool {
	for _, c := range r.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

func (r *Rule) coversItem(itemID snowflake.ID) bool {
	for _, id := range r.ProductIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// Targets reports whether the rule is restricted to clientID.
func (r *Rule) Targets(clientID snowflake.ID) bool {
	for _, id := range r.TargetedClientIDs {
		if id == clientID {
			return true
		}
	}
	return false
}

// IsGeneral reports whether the rule applies to every client.
func (r *Rule) IsGeneral() bool { return len(r.TargetedClientIDs) == 0 }

// CoversItem reports whether itemID is part of the rule's product set.
func (r *Rule) CoversItem(itemID snowflake.ID) bool { return r.coversItem(itemID) }

// ApplicableRule picks the rule governing (country, item, client). A rule that
// targets the client beats any general rule; among equals the newest wins.
func ApplicableRule(rules []Rule, country string, itemID, clientID snowflake.ID) *Rule {
	ordered := make([]*Rule, 0, len(rules))
	for i := range rules {
		rule := &rules[i]
		if !rule.Active || !rule.coversCountry(country) || !rule.coversItem(itemID) {
			continue
		}
		ordered = append(ordered, rule)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].ID > ordered[j].ID
		}
		return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
	})

	for _, rule := range ordered {
		if clientID != 0 && rule.Targets(clientID) {
			return rule
		}
	}
	for _, rule := range ordered {
		if rule.IsGeneral() {
			return rule
		}
	}
	return nil
}

// PriceForQuantity returns the unit price of the first step containing qty.
func PriceForQuantity(steps []Step, qty int64) (decimal.Decimal, bool) {
	for _, step := range steps {
		if step.contains(qty) {
			return step.Price, true
		}
	}
	return decimal.Zero, false
}
