package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/model"
)

var errReadOnly = errors.New("store: write in read-only transaction")

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
//
// Update holds the write lock for the whole transaction and stages writes
// in an overlay, so an aborted transaction leaves no trace.
type MemoryStore struct {
	mu        sync.RWMutex
	cfg       *model.Config
	supply    model.Supply
	info      model.TokenInfo
	positions map[string]model.Position
	byOwner   map[string][]string // owner → ids in insertion order
	balances  map[string]decimal.Decimal
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		positions: make(map[string]model.Position),
		byOwner:   make(map[string][]string),
		balances:  make(map[string]decimal.Decimal),
	}
}

func (s *MemoryStore) Init(_ context.Context, cfg model.Config, info model.TokenInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfg != nil {
		return model.ErrAlreadyInitialized
	}
	c := cfg
	s.cfg = &c
	s.supply = model.Supply{}
	info.TotalSupply = decimal.Zero
	s.info = info
	return nil
}

func (s *MemoryStore) Update(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newMemTx(s, true)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) View(_ context.Context, fn func(tx Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(newMemTx(s, false))
}

// memTx reads through its overlay to the base store.
type memTx struct {
	base     *MemoryStore
	writable bool

	supply   *model.Supply
	info     *model.TokenInfo
	puts     map[string]model.Position // inserted or updated in this tx
	created  map[string]bool
	inserted []string // created ids in insertion order
	removed  map[string]bool
	balances map[string]decimal.Decimal
}

func newMemTx(base *MemoryStore, writable bool) *memTx {
	return &memTx{
		base:     base,
		writable: writable,
		puts:     make(map[string]model.Position),
		created:  make(map[string]bool),
		removed:  make(map[string]bool),
		balances: make(map[string]decimal.Decimal),
	}
}

func (t *memTx) Config(_ context.Context) (model.Config, error) {
	if t.base.cfg == nil {
		return model.Config{}, model.ErrNotInitialized
	}
	return *t.base.cfg, nil
}

func (t *memTx) Supply(_ context.Context) (model.Supply, error) {
	if t.base.cfg == nil {
		return model.Supply{}, model.ErrNotInitialized
	}
	if t.supply != nil {
		return *t.supply, nil
	}
	return t.base.supply, nil
}

func (t *memTx) PutSupply(_ context.Context, s model.Supply) error {
	if !t.writable {
		return errReadOnly
	}
	t.supply = &s
	return nil
}

func (t *memTx) Position(_ context.Context, id string) (model.Position, error) {
	if p, ok := t.puts[id]; ok {
		return p, nil
	}
	if t.removed[id] {
		return model.Position{}, fmt.Errorf("position %s: %w", id, model.ErrNotFound)
	}
	p, ok := t.base.positions[id]
	if !ok {
		return model.Position{}, fmt.Errorf("position %s: %w", id, model.ErrNotFound)
	}
	return p, nil
}

func (t *memTx) InsertPosition(ctx context.Context, p model.Position) error {
	if !t.writable {
		return errReadOnly
	}
	if _, err := t.Position(ctx, p.ID); err == nil {
		return fmt.Errorf("position %s: %w", p.ID, model.ErrDuplicateID)
	}
	t.puts[p.ID] = p
	t.created[p.ID] = true
	t.inserted = append(t.inserted, p.ID)
	return nil
}

func (t *memTx) UpdatePosition(ctx context.Context, p model.Position) error {
	if !t.writable {
		return errReadOnly
	}
	cur, err := t.Position(ctx, p.ID)
	if err != nil {
		return err
	}
	if cur.Owner != p.Owner {
		return fmt.Errorf("position %s: owner is immutable", p.ID)
	}
	t.puts[p.ID] = p
	return nil
}

func (t *memTx) RemovePosition(ctx context.Context, id string) error {
	if !t.writable {
		return errReadOnly
	}
	if _, err := t.Position(ctx, id); err != nil {
		return err
	}
	delete(t.puts, id)
	if t.created[id] {
		delete(t.created, id)
		t.inserted = without(t.inserted, id)
	}
	if _, ok := t.base.positions[id]; ok {
		t.removed[id] = true
	}
	return nil
}

func (t *memTx) PositionsByOwner(_ context.Context, owner string) ([]model.Position, error) {
	var result []model.Position
	for _, id := range t.base.byOwner[owner] {
		if t.removed[id] {
			continue
		}
		if p, ok := t.puts[id]; ok {
			result = append(result, p)
			continue
		}
		result = append(result, t.base.positions[id])
	}
	for _, id := range t.inserted {
		if p := t.puts[id]; p.Owner == owner {
			result = append(result, p)
		}
	}
	return result, nil
}

func (t *memTx) TokenInfo(_ context.Context) (model.TokenInfo, error) {
	if t.base.cfg == nil {
		return model.TokenInfo{}, model.ErrNotInitialized
	}
	if t.info != nil {
		return *t.info, nil
	}
	return t.base.info, nil
}

func (t *memTx) PutTokenInfo(_ context.Context, info model.TokenInfo) error {
	if !t.writable {
		return errReadOnly
	}
	t.info = &info
	return nil
}

func (t *memTx) Balance(_ context.Context, addr string) (decimal.Decimal, error) {
	if b, ok := t.balances[addr]; ok {
		return b, nil
	}
	return t.base.balances[addr], nil
}

func (t *memTx) PutBalance(_ context.Context, addr string, amount decimal.Decimal) error {
	if !t.writable {
		return errReadOnly
	}
	t.balances[addr] = amount
	return nil
}

// commit applies the overlay. Called with the base write lock held.
func (t *memTx) commit() {
	s := t.base

	for id := range t.removed {
		p, ok := s.positions[id]
		if !ok {
			continue
		}
		delete(s.positions, id)
		s.byOwner[p.Owner] = without(s.byOwner[p.Owner], id)
		if len(s.byOwner[p.Owner]) == 0 {
			delete(s.byOwner, p.Owner)
		}
	}
	for id, p := range t.puts {
		if !t.created[id] {
			s.positions[id] = p
		}
	}
	for _, id := range t.inserted {
		p := t.puts[id]
		s.positions[id] = p
		s.byOwner[p.Owner] = append(s.byOwner[p.Owner], id)
	}

	if t.supply != nil {
		s.supply = *t.supply
	}
	if t.info != nil {
		s.info = *t.info
	}
	for addr, b := range t.balances {
		if b.IsZero() {
			delete(s.balances, addr)
		} else {
			s.balances[addr] = b
		}
	}
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
