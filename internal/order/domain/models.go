package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusCommitted Status = "committed"
)

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// MetadataEvent is an entry appended to an order's history.
type MetadataEvent struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	Author  string    `json:"author,omitempty"`
	At      time.Time `json:"at"`
}

// Order is written once from a cart. Only tracking, payment, address and
// metadata change afterwards.
type Order struct {
	ID               snowflake.ID                       `json:"id" gorm:"primaryKey"`
	OrgID            snowflake.ID                       `json:"organization_id" gorm:"column:org_id;not null;uniqueIndex:ux_orders_org_sequence"`
	ClientID         snowflake.ID                       `json:"client_id" gorm:"not null;index"`
	CartID           snowflake.ID                       `json:"cart_id" gorm:"not null;index"`
	SequenceNumber   int64                              `json:"sequence_number" gorm:"not null;uniqueIndex:ux_orders_org_sequence"`
	Status           Status                             `json:"status" gorm:"type:text;not null"`
	Country          string                             `json:"country" gorm:"type:text;not null"`
	Subtotal         decimal.Decimal                    `json:"subtotal" gorm:"type:numeric(18,4);not null;default:0"`
	PointsTotal      int64                              `json:"points_total" gorm:"not null;default:0"`
	ShippingCost     decimal.Decimal                    `json:"shipping_cost" gorm:"type:numeric(18,4);not null;default:0"`
	PaymentMethod    string                             `json:"payment_method" gorm:"type:text"`
	PaymentReference string                             `json:"payment_reference,omitempty" gorm:"type:text"`
	ShippingAddress  datatypes.JSONType[Address]        `json:"shipping_address" gorm:"type:jsonb"`
	TrackingNumber   string                             `json:"tracking_number,omitempty" gorm:"type:text"`
	Metadata         datatypes.JSONSlice[MetadataEvent] `json:"metadata" gorm:"type:jsonb"`
	ContentHash      string                             `json:"content_hash" gorm:"type:text;not null"`
	ParentOrderID    *snowflake.ID                      `json:"parent_order_id,omitempty" gorm:"index"`
	RootOrderID      *snowflake.ID                      `json:"root_order_id,omitempty" gorm:"index"`
	CreatedAt        time.Time                          `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time                          `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// Root is the id of the order that started the fan-out chain.
func (o *Order) Root() snowflake.ID {
	if o.RootOrderID != nil {
		return *o.RootOrderID
	}
	return o.ID
}

// OrderSequence holds the last sequence number handed out per organization.
type OrderSequence struct {
	OrgID     snowflake.ID `gorm:"column:org_id;primaryKey;autoIncrement:false"`
	LastValue int64        `gorm:"not null;default:0"`
}

func (OrderSequence) TableName() string { return "order_sequences" }
