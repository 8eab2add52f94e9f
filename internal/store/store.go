// Package store defines the persistence interface for the lockup engine.
// Implementations include PostgreSQL (source of truth), in-memory (for
// testing), and a Redis read-through cache for the immutable configuration.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
)

// Store is the persistence interface. Every mutation happens inside Update,
// which commits all staged writes together or none of them.
type Store interface {
	// Init writes the configuration, a zeroed supply and the token info.
	// It fails with model.ErrAlreadyInitialized if a configuration exists.
	Init(ctx context.Context, cfg model.Config, info model.TokenInfo) error

	// Update runs fn in a read-write transaction. If fn returns an error
	// nothing it wrote is kept.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a read-only snapshot.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the persisted layout inside one transaction:
// config (singleton), supply (singleton), positions[id], the derived
// positions-by-owner index, token info and token balances.
type Tx interface {
	// --- Singletons ---

	// Config returns the configuration or model.ErrNotInitialized.
	Config(ctx context.Context) (model.Config, error)

	// Supply returns the aggregate ledger.
	Supply(ctx context.Context) (model.Supply, error)

	// PutSupply replaces the aggregate ledger.
	PutSupply(ctx context.Context, s model.Supply) error

	// --- Positions ---

	// Position returns a position or model.ErrNotFound.
	Position(ctx context.Context, id string) (model.Position, error)

	// InsertPosition adds a position and indexes it under its owner.
	// Fails with model.ErrDuplicateID if the id is in use.
	InsertPosition(ctx context.Context, p model.Position) error

	// UpdatePosition replaces an existing position. The owner is immutable.
	UpdatePosition(ctx context.Context, p model.Position) error

	// RemovePosition deletes a position and its index entry.
	RemovePosition(ctx context.Context, id string) error

	// PositionsByOwner returns an owner's positions in index insertion order.
	PositionsByOwner(ctx context.Context, owner string) ([]model.Position, error)

	// --- Derivative token ---

	// TokenInfo returns token metadata and total supply.
	TokenInfo(ctx context.Context) (model.TokenInfo, error)

	// PutTokenInfo replaces token metadata and total supply.
	PutTokenInfo(ctx context.Context, info model.TokenInfo) error

	// Balance returns an address's token balance, zero if unset.
	Balance(ctx context.Context, addr string) (decimal.Decimal, error)

	// PutBalance sets an address's token balance. Zero removes the entry.
	PutBalance(ctx context.Context, addr string, amount decimal.Decimal) error
}
