package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Type string

const (
	TypeOrderCommitted     Type = "order.committed"
	TypeOrderMessagePosted Type = "order.message_posted"
	TypeOrderLineAdded     Type = "order.line_added"
)

type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelInApp   Channel = "in_app"
	ChannelWebhook Channel = "webhook"
)

// Audience routes a notification to the client alone or to the whole organization.
type Audience string

const (
	AudienceClient       Audience = "client"
	AudienceOrganization Audience = "organization"
)

type Notification struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	OrgID      snowflake.ID   `json:"organization_id"`
	ClientID   snowflake.ID   `json:"client_id,omitempty"`
	Audience   Audience       `json:"audience"`
	Channels   []Channel      `json:"channels"`
	Recipients []string       `json:"recipients,omitempty"`
	Subject    string         `json:"subject,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// HasChannel reports whether c is one of the requested channels.
func (n *Notification) HasChannel(c Channel) bool {
	for _, ch := range n.Channels {
		if ch == c {
			return true
		}
	}
	return false
}

// Dispatcher delivers one notification over the channels it handles.
type Dispatcher interface {
	Name() string
	Dispatch(ctx context.Context, n Notification) error
}

// Publisher hands notifications to every dispatcher. Delivery problems are
// logged and never reach the caller.
type Publisher interface {
	Publish(ctx context.Context, n Notification)
}
