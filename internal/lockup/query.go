package lockup

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/fee"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// Investment returns the configuration together with the current ledger
// totals and the nominal value of one derivative token.
func (e *Engine) Investment(ctx context.Context) (model.Investment, error) {
	var inv model.Investment
	err := e.store.View(ctx, func(tx store.Tx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		supply, err := tx.Supply(ctx)
		if err != nil {
			return err
		}
		inv = model.Investment{
			Owner:        cfg.Owner,
			Penalty:      cfg.Penalty,
			TokenSupply:  supply.Issued,
			StakedTokens: model.Coin{Denom: cfg.StakeDenom, Amount: supply.Locked},
			Fees:         supply.Fees,
			NominalValue: fee.NominalValue(supply.Locked, supply.Issued),
			Period:       cfg.Period,
			Tax:          cfg.Tax,
		}
		return nil
	})
	return inv, err
}

// Supply returns the aggregate ledger.
func (e *Engine) Supply(ctx context.Context) (model.Supply, error) {
	var s model.Supply
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		s, err = tx.Supply(ctx)
		return err
	})
	return s, err
}

// Positions lists every open position of owner in index order.
func (e *Engine) Positions(ctx context.Context, owner string) ([]model.Position, error) {
	var ps []model.Position
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		ps, err = tx.PositionsByOwner(ctx, owner)
		return err
	})
	if ps == nil {
		ps = []model.Position{}
	}
	return ps, err
}

// Position returns one open position.
func (e *Engine) Position(ctx context.Context, id string) (model.Position, error) {
	var p model.Position
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		p, err = tx.Position(ctx, id)
		return err
	})
	return p, err
}

// Balance returns addr's derivative-token balance.
func (e *Engine) Balance(ctx context.Context, addr string) (decimal.Decimal, error) {
	var b decimal.Decimal
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		b, err = e.bank.BalanceOf(ctx, tx, addr)
		return err
	})
	return b, err
}

// TokenInfo returns the derivative token's metadata and total supply.
func (e *Engine) TokenInfo(ctx context.Context) (model.TokenInfo, error) {
	var info model.TokenInfo
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		info, err = e.bank.Info(ctx, tx)
		return err
	})
	return info, err
}
