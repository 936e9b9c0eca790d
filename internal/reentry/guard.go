// Package reentry implements the per-call-chain reentrancy guard shared by
// the router, the market executor and the limit order book.
//
// The guard marks the context of an in-flight call with a scope-specific
// chain id. Should an outbound settlement transfer synchronously call back
// into a guarded entry point with the same context, the marker is already
// present and the call fails with ErrReentrantCall before any state is
// touched. Independent calls arrive with fresh contexts and serialize on
// the component mutexes as usual.
package reentry

import (
	"context"

	"geoVenue/internal/ports"

	"github.com/google/uuid"
)

type chainKey string

// Enter marks ctx as being inside the given scope and returns the derived
// context to thread through the rest of the call chain. It fails with
// ErrReentrantCall if ctx is already inside that scope.
func Enter(ctx context.Context, scope string) (context.Context, error) {
	key := chainKey(scope)
	if ctx.Value(key) != nil {
		return nil, ports.ErrReentrantCall
	}
	return context.WithValue(ctx, key, uuid.NewString()), nil
}

// ChainID returns the chain id assigned by Enter for the given scope, or
// the empty string when ctx is outside the scope. Used for log correlation.
func ChainID(ctx context.Context, scope string) string {
	if v, ok := ctx.Value(chainKey(scope)).(string); ok {
		return v
	}
	return ""
}
