package live

import (
	"context"

	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/internal/extraction"
)

// ConnectionResolver implements UserResolver over the connection state
// machine's entity-id index, the only place an aggregator entity is
// mapped back to a user and founder profile.
type ConnectionResolver struct {
	connections *connection.Service
}

// NewConnectionResolver constructs a ConnectionResolver.
func NewConnectionResolver(connections *connection.Service) *ConnectionResolver {
	return &ConnectionResolver{connections: connections}
}

// ResolveEntity implements UserResolver.
func (r *ConnectionResolver) ResolveEntity(ctx context.Context, entityID string) (string, extraction.UserContext, error) {
	state, err := r.connections.GetStateByEntityID(ctx, entityID)
	if err != nil {
		return "", extraction.UserContext{}, err
	}

	uc := extraction.UserContext{
		UserID:        state.UserID,
		FounderName:   state.FounderName,
		FounderEmail:  state.FounderEmail,
		FounderDomain: state.FounderDomain,
	}
	return state.UserID, uc, nil
}
