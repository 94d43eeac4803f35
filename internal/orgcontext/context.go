package orgcontext

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

// OrgContextKey is the request context key for the active organization ID.
type OrgContextKey struct{}

// ClientContextKey is the request context key for the calling client ID.
type ClientContextKey struct{}

// WithOrgID stores the org ID in the context.
func WithOrgID(ctx context.Context, orgID int64) context.Context {
	return context.WithValue(ctx, OrgContextKey{}, orgID)
}

// WithClientID stores the caller's client ID in the context.
func WithClientID(ctx context.Context, clientID int64) context.Context {
	return context.WithValue(ctx, ClientContextKey{}, clientID)
}

// OrgIDFromContext returns the org ID from context, if set.
func OrgIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	return idFromValue(ctx.Value(OrgContextKey{}))
}

// ClientIDFromContext returns the caller's client ID from context, if set.
func ClientIDFromContext(ctx context.Context) (snowflake.ID, bool) {
	if ctx == nil {
		return 0, false
	}
	return idFromValue(ctx.Value(ClientContextKey{}))
}

func idFromValue(value any) (snowflake.ID, bool) {
	switch typed := value.(type) {
	case int64:
		return snowflake.ID(typed), typed != 0
	case snowflake.ID:
		return typed, typed != 0
	case string:
		parsed, err := snowflake.ParseString(strings.TrimSpace(typed))
		if err == nil && parsed != 0 {
			return parsed, true
		}
	}
	return 0, false
}
