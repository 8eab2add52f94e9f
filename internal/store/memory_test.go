package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

var errAbort = errors.New("abort")

var (
	testCfg = model.Config{
		Owner:         "creator",
		StakeDenom:    "qtum",
		IssuerAddress: "qtum",
		Period:        model.LockPeriod{Long: time.Hour, Short: time.Minute},
		Tax:           model.LockTax{Long: decimal.RequireFromString("0.02"), Short: decimal.RequireFromString("0.03")},
		Penalty:       decimal.RequireFromString("0.02"),
	}
	testInfo = model.TokenInfo{Name: "xQtum", Symbol: "xQtum", Decimals: 6}
)

func newStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	if err := ms.Init(context.Background(), testCfg, testInfo); err != nil {
		t.Fatalf("init: %v", err)
	}
	return ms
}

func pos(id, owner string, principal int64) model.Position {
	return model.Position{
		ID:        id,
		Owner:     owner,
		Principal: decimal.NewFromInt(principal),
		OpenedAt:  time.Unix(1700000000, 0).UTC(),
		Duration:  time.Hour,
	}
}

func insert(t *testing.T, ms store.Store, ps ...model.Position) {
	t.Helper()
	err := ms.Update(context.Background(), func(tx store.Tx) error {
		for _, p := range ps {
			if err := tx.InsertPosition(context.Background(), p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func ownerIDs(t *testing.T, ms store.Store, owner string) []string {
	t.Helper()
	var ids []string
	err := ms.View(context.Background(), func(tx store.Tx) error {
		ps, err := tx.PositionsByOwner(context.Background(), owner)
		for _, p := range ps {
			ids = append(ids, p.ID)
		}
		return err
	})
	if err != nil {
		t.Fatalf("positions by owner: %v", err)
	}
	return ids
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInit_Twice(t *testing.T) {
	ms := newStore(t)
	err := ms.Init(context.Background(), model.Config{IssuerAddress: "x", StakeDenom: "y"}, model.TokenInfo{})
	if !errors.Is(err, model.ErrAlreadyInitialized) {
		t.Errorf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestConfig_NotInitialized(t *testing.T) {
	ms := store.NewMemoryStore()
	err := ms.View(context.Background(), func(tx store.Tx) error {
		_, err := tx.Config(context.Background())
		return err
	})
	if !errors.Is(err, model.ErrNotInitialized) {
		t.Errorf("expected ErrNotInitialized, got %v", err)
	}
}

func TestInsertPosition_Duplicate(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("1", "alice", 100))

	err := ms.Update(context.Background(), func(tx store.Tx) error {
		return tx.InsertPosition(context.Background(), pos("1", "bob", 5))
	})
	if !errors.Is(err, model.ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}

	ms.View(context.Background(), func(tx store.Tx) error {
		p, err := tx.Position(context.Background(), "1")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if p.Owner != "alice" || !p.Principal.Equal(decimal.NewFromInt(100)) {
			t.Errorf("original position was overwritten: %+v", p)
		}
		return nil
	})
	if ids := ownerIDs(t, ms, "bob"); len(ids) != 0 {
		t.Errorf("bob should own nothing, got %v", ids)
	}
}

func TestPositionsByOwner_InsertionOrder(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("b", "alice", 1), pos("a", "alice", 2))
	insert(t, ms, pos("z", "bob", 3))
	insert(t, ms, pos("c", "alice", 4))

	if ids := ownerIDs(t, ms, "alice"); !equalIDs(ids, []string{"b", "a", "c"}) {
		t.Errorf("expected [b a c], got %v", ids)
	}
	if ids := ownerIDs(t, ms, "bob"); !equalIDs(ids, []string{"z"}) {
		t.Errorf("expected [z], got %v", ids)
	}
	if ids := ownerIDs(t, ms, "carol"); len(ids) != 0 {
		t.Errorf("expected no positions for carol, got %v", ids)
	}
}

func TestRemovePosition_UpdatesIndex(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("1", "alice", 100), pos("2", "alice", 50))

	err := ms.Update(context.Background(), func(tx store.Tx) error {
		return tx.RemovePosition(context.Background(), "1")
	})
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if ids := ownerIDs(t, ms, "alice"); !equalIDs(ids, []string{"2"}) {
		t.Errorf("expected [2], got %v", ids)
	}

	err = ms.Update(context.Background(), func(tx store.Tx) error {
		return tx.RemovePosition(context.Background(), "1")
	})
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestUpdate_AbortDiscardsEverything(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("1", "alice", 100))

	err := ms.Update(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.InsertPosition(ctx, pos("2", "alice", 10)); err != nil {
			return err
		}
		if err := tx.RemovePosition(ctx, "1"); err != nil {
			return err
		}
		if err := tx.PutSupply(ctx, model.Supply{Locked: decimal.NewFromInt(10)}); err != nil {
			return err
		}
		if err := tx.PutBalance(ctx, "alice", decimal.NewFromInt(10)); err != nil {
			return err
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected errAbort, got %v", err)
	}

	if ids := ownerIDs(t, ms, "alice"); !equalIDs(ids, []string{"1"}) {
		t.Errorf("expected [1] after abort, got %v", ids)
	}
	ms.View(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		s, _ := tx.Supply(ctx)
		if !s.Locked.IsZero() {
			t.Errorf("supply should be untouched, got %s", s.Locked)
		}
		b, _ := tx.Balance(ctx, "alice")
		if !b.IsZero() {
			t.Errorf("balance should be untouched, got %s", b)
		}
		return nil
	})
}

func TestUpdate_ReadYourWrites(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("1", "alice", 100))

	err := ms.Update(context.Background(), func(tx store.Tx) error {
		ctx := context.Background()
		if err := tx.InsertPosition(ctx, pos("2", "alice", 10)); err != nil {
			return err
		}
		p := pos("1", "alice", 60)
		if err := tx.UpdatePosition(ctx, p); err != nil {
			return err
		}
		ps, err := tx.PositionsByOwner(ctx, "alice")
		if err != nil {
			return err
		}
		if len(ps) != 2 || ps[0].ID != "1" || !ps[0].Principal.Equal(decimal.NewFromInt(60)) || ps[1].ID != "2" {
			t.Errorf("unexpected in-tx view: %+v", ps)
		}
		if err := tx.RemovePosition(ctx, "2"); err != nil {
			return err
		}
		if _, err := tx.Position(ctx, "2"); !errors.Is(err, model.ErrNotFound) {
			t.Errorf("expected ErrNotFound for removed in-tx insert, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ids := ownerIDs(t, ms, "alice"); !equalIDs(ids, []string{"1"}) {
		t.Errorf("expected [1], got %v", ids)
	}
}

func TestUpdatePosition_OwnerImmutable(t *testing.T) {
	ms := newStore(t)
	insert(t, ms, pos("1", "alice", 100))

	err := ms.Update(context.Background(), func(tx store.Tx) error {
		return tx.UpdatePosition(context.Background(), pos("1", "mallory", 100))
	})
	if err == nil {
		t.Fatal("expected error changing owner")
	}
	if ids := ownerIDs(t, ms, "mallory"); len(ids) != 0 {
		t.Errorf("mallory should own nothing, got %v", ids)
	}
}

func TestView_IsReadOnly(t *testing.T) {
	ms := newStore(t)
	err := ms.View(context.Background(), func(tx store.Tx) error {
		return tx.InsertPosition(context.Background(), pos("1", "alice", 1))
	})
	if err == nil {
		t.Error("expected error writing in a read-only transaction")
	}
}
