package token_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
	"github.com/atmx/lockup-engine/internal/token"
)

func amt(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func newBank(t *testing.T) (*token.Bank, *store.MemoryStore) {
	t.Helper()
	ms := store.NewMemoryStore()
	cfg := model.Config{Owner: "creator", StakeDenom: "qtum", IssuerAddress: "qtum"}
	if err := ms.Init(context.Background(), cfg, model.TokenInfo{Name: "xQtum", Symbol: "xQtum", Decimals: 6}); err != nil {
		t.Fatalf("init: %v", err)
	}
	return token.NewBank(), ms
}

func balance(t *testing.T, b *token.Bank, ms *store.MemoryStore, addr string) decimal.Decimal {
	t.Helper()
	var bal decimal.Decimal
	err := ms.View(context.Background(), func(tx store.Tx) error {
		var err error
		bal, err = b.BalanceOf(context.Background(), tx, addr)
		return err
	})
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func totalSupply(t *testing.T, b *token.Bank, ms *store.MemoryStore) decimal.Decimal {
	t.Helper()
	var info model.TokenInfo
	err := ms.View(context.Background(), func(tx store.Tx) error {
		var err error
		info, err = b.Info(context.Background(), tx)
		return err
	})
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	return info.TotalSupply
}

func TestMintBurn(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	err := ms.Update(ctx, func(tx store.Tx) error {
		if err := b.Mint(ctx, tx, "alice", amt(98)); err != nil {
			return err
		}
		return b.Mint(ctx, tx, "bob", amt(97))
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := balance(t, b, ms, "alice"); !got.Equal(amt(98)) {
		t.Errorf("expected alice=98, got %s", got)
	}
	if got := totalSupply(t, b, ms); !got.Equal(amt(195)) {
		t.Errorf("expected total supply 195, got %s", got)
	}

	err = ms.Update(ctx, func(tx store.Tx) error {
		return b.Burn(ctx, tx, "alice", amt(50))
	})
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if got := balance(t, b, ms, "alice"); !got.Equal(amt(48)) {
		t.Errorf("expected alice=48, got %s", got)
	}
	if got := totalSupply(t, b, ms); !got.Equal(amt(145)) {
		t.Errorf("expected total supply 145, got %s", got)
	}
}

func TestBurn_InsufficientBalance(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	ms.Update(ctx, func(tx store.Tx) error { return b.Mint(ctx, tx, "alice", amt(10)) })

	err := ms.Update(ctx, func(tx store.Tx) error {
		return b.Burn(ctx, tx, "alice", amt(11))
	})
	if !errors.Is(err, model.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if got := balance(t, b, ms, "alice"); !got.Equal(amt(10)) {
		t.Errorf("balance should be untouched, got %s", got)
	}
	if got := totalSupply(t, b, ms); !got.Equal(amt(10)) {
		t.Errorf("total supply should be untouched, got %s", got)
	}
}

func TestMint_RejectsFractional(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	err := ms.Update(ctx, func(tx store.Tx) error {
		return b.Mint(ctx, tx, "alice", decimal.RequireFromString("1.5"))
	})
	if !errors.Is(err, model.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestZeroAmounts_NoOp(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	err := ms.Update(ctx, func(tx store.Tx) error {
		if err := b.Mint(ctx, tx, "alice", decimal.Zero); err != nil {
			return err
		}
		return b.Burn(ctx, tx, "alice", decimal.Zero)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := totalSupply(t, b, ms); !got.IsZero() {
		t.Errorf("expected zero supply, got %s", got)
	}
}

func TestTransfer(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	ms.Update(ctx, func(tx store.Tx) error { return b.Mint(ctx, tx, "alice", amt(100)) })

	err := ms.Update(ctx, func(tx store.Tx) error {
		return b.Transfer(ctx, tx, "alice", "bob", amt(30))
	})
	if err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := balance(t, b, ms, "alice"); !got.Equal(amt(70)) {
		t.Errorf("expected alice=70, got %s", got)
	}
	if got := balance(t, b, ms, "bob"); !got.Equal(amt(30)) {
		t.Errorf("expected bob=30, got %s", got)
	}
	if got := totalSupply(t, b, ms); !got.Equal(amt(100)) {
		t.Errorf("transfer must not change total supply, got %s", got)
	}
}

func TestTransfer_ToSelf(t *testing.T) {
	b, ms := newBank(t)
	ctx := context.Background()

	ms.Update(ctx, func(tx store.Tx) error { return b.Mint(ctx, tx, "alice", amt(10)) })

	if err := ms.Update(ctx, func(tx store.Tx) error {
		return b.Transfer(ctx, tx, "alice", "alice", amt(10))
	}); err != nil {
		t.Fatalf("self transfer: %v", err)
	}
	if got := balance(t, b, ms, "alice"); !got.Equal(amt(10)) {
		t.Errorf("expected alice=10, got %s", got)
	}
}

func TestTransfer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		to     string
		amount decimal.Decimal
		want   error
	}{
		{"insufficient", "bob", amt(11), model.ErrInsufficientBalance},
		{"zero", "bob", decimal.Zero, model.ErrInvalidAmount},
		{"negative", "bob", amt(-1), model.ErrInvalidAmount},
		{"no recipient", "", amt(1), model.ErrInvalidPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ms := newBank(t)
			ctx := context.Background()
			ms.Update(ctx, func(tx store.Tx) error { return b.Mint(ctx, tx, "alice", amt(10)) })

			err := ms.Update(ctx, func(tx store.Tx) error {
				return b.Transfer(ctx, tx, "alice", tt.to, tt.amount)
			})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if got := balance(t, b, ms, "alice"); !got.Equal(amt(10)) {
				t.Errorf("balance should be untouched, got %s", got)
			}
		})
	}
}
