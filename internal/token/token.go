// Package token is the derivative-token bank: it mints to depositors,
// burns from unlockers and answers balance and token-info queries. It
// always works inside the caller's store transaction so a mint or burn
// commits or rolls back together with the ledger change that caused it.
package token

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/fee"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// Bank mints and burns the derivative token. The lockup engine is its only
// authorized minter.
type Bank struct{}

// NewBank creates a bank.
func NewBank() *Bank {
	return &Bank{}
}

// Mint credits amount to addr and grows the total supply.
func (b *Bank) Mint(ctx context.Context, tx store.Tx, to string, amount decimal.Decimal) error {
	if to == "" {
		return fmt.Errorf("token: mint to empty address")
	}
	if err := fee.ValidateAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}

	info, err := tx.TokenInfo(ctx)
	if err != nil {
		return err
	}
	if info.TotalSupply, err = fee.CheckedAdd(info.TotalSupply, amount); err != nil {
		return fmt.Errorf("mint total supply: %w", err)
	}
	bal, err := tx.Balance(ctx, to)
	if err != nil {
		return err
	}
	if bal, err = fee.CheckedAdd(bal, amount); err != nil {
		return fmt.Errorf("mint balance of %s: %w", to, err)
	}

	if err := tx.PutBalance(ctx, to, bal); err != nil {
		return err
	}
	return tx.PutTokenInfo(ctx, info)
}

// Burn debits amount from addr and shrinks the total supply. It fails with
// model.ErrInsufficientBalance if addr holds less than amount.
func (b *Bank) Burn(ctx context.Context, tx store.Tx, from string, amount decimal.Decimal) error {
	if err := fee.ValidateAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return nil
	}

	bal, err := tx.Balance(ctx, from)
	if err != nil {
		return err
	}
	if amount.GreaterThan(bal) {
		return fmt.Errorf("%w: %s holds %s, burn needs %s", model.ErrInsufficientBalance, from, bal, amount)
	}
	info, err := tx.TokenInfo(ctx)
	if err != nil {
		return err
	}
	if info.TotalSupply, err = fee.CheckedSub(info.TotalSupply, amount); err != nil {
		return fmt.Errorf("burn total supply: %w", err)
	}

	if err := tx.PutBalance(ctx, from, bal.Sub(amount)); err != nil {
		return err
	}
	return tx.PutTokenInfo(ctx, info)
}

// BalanceOf returns addr's balance.
func (b *Bank) BalanceOf(ctx context.Context, tx store.Tx, addr string) (decimal.Decimal, error) {
	return tx.Balance(ctx, addr)
}

// Info returns token metadata and total supply.
func (b *Bank) Info(ctx context.Context, tx store.Tx) (model.TokenInfo, error) {
	return tx.TokenInfo(ctx)
}

// Transfer moves amount from one holder to another. Total supply is
// unchanged. It fails with model.ErrInsufficientBalance if from holds less
// than amount.
func (b *Bank) Transfer(ctx context.Context, tx store.Tx, from, to string, amount decimal.Decimal) error {
	if to == "" {
		return fmt.Errorf("%w: transfer recipient is required", model.ErrInvalidPayload)
	}
	if err := fee.ValidateAmount(amount); err != nil {
		return err
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: transfer amount must be positive", model.ErrInvalidAmount)
	}

	fromBal, err := tx.Balance(ctx, from)
	if err != nil {
		return err
	}
	if amount.GreaterThan(fromBal) {
		return fmt.Errorf("%w: %s holds %s, transfer needs %s", model.ErrInsufficientBalance, from, fromBal, amount)
	}
	if from == to {
		return nil
	}
	toBal, err := tx.Balance(ctx, to)
	if err != nil {
		return err
	}
	if toBal, err = fee.CheckedAdd(toBal, amount); err != nil {
		return fmt.Errorf("transfer balance of %s: %w", to, err)
	}

	if err := tx.PutBalance(ctx, from, fromBal.Sub(amount)); err != nil {
		return err
	}
	return tx.PutBalance(ctx, to, toBal)
}
