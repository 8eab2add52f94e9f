// Package lockup is the lock/unlock accounting engine. It keeps the
// aggregate ledger (locked, issued, fees) in agreement with the set of open
// positions: every lock and unlock mutates the ledger, the position store,
// the owner index and the derivative-token bank inside one store
// transaction, so a call either commits completely or leaves no trace.
//
// Calls are serialized by the engine; there is never more than one lock or
// unlock in flight.
package lockup

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/events"
	"github.com/atmx/lockup-engine/internal/metrics"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// Bank is the derivative-token collaborator. Mint and Burn join the
// caller's transaction.
type Bank interface {
	Mint(ctx context.Context, tx store.Tx, to string, amount decimal.Decimal) error
	Burn(ctx context.Context, tx store.Tx, from string, amount decimal.Decimal) error
	Transfer(ctx context.Context, tx store.Tx, from, to string, amount decimal.Decimal) error
	BalanceOf(ctx context.Context, tx store.Tx, addr string) (decimal.Decimal, error)
	Info(ctx context.Context, tx store.Tx) (model.TokenInfo, error)
}

// Engine runs locks, unlocks and the read-only queries over one store.
type Engine struct {
	store store.Store
	bank  Bank
	pub   events.Publisher // optional
	nowFn func() time.Time

	mu   sync.Mutex
	last time.Time // latest instant observed; time never runs backwards
}

// NewEngine creates an engine. Pass nil for pub if events are not needed
// and nil for now to use the wall clock.
func NewEngine(st store.Store, bank Bank, pub events.Publisher, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{
		store: st,
		bank:  bank,
		pub:   pub,
		nowFn: now,
	}
}

// Instantiate writes the configuration, a zeroed ledger and the token
// metadata. It fails with model.ErrAlreadyInitialized on a second call.
func Instantiate(ctx context.Context, st store.Store, cfg model.Config, info model.TokenInfo) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	info.TotalSupply = decimal.Zero
	return st.Init(ctx, cfg, info)
}

// now returns the current time at microsecond precision, the resolution
// Postgres TIMESTAMPTZ keeps, clamped so that it never goes backwards.
// Called with e.mu held.
func (e *Engine) now() time.Time {
	t := e.nowFn().Truncate(time.Microsecond)
	if t.Before(e.last) {
		return e.last
	}
	e.last = t
	return t
}

func (e *Engine) publish(ctx context.Context, ev model.Event) {
	if e.pub == nil {
		return
	}
	ev.ID = uuid.NewString()
	if err := e.pub.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed", "action", ev.Action, "idx", ev.PositionID, "err", err)
	}
}

// reject records a failed call. Ledger divergence is logged as an error.
func reject(op string, err error, attrs ...any) {
	reason := "other"
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		reason = "unauthorized"
	case errors.Is(err, model.ErrDuplicateID):
		reason = "duplicate_id"
	case errors.Is(err, model.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, model.ErrInsufficientBalance):
		reason = "insufficient_balance"
	case errors.Is(err, model.ErrInvalidPayload):
		reason = "invalid_payload"
	case errors.Is(err, model.ErrInvalidAmount):
		reason = "invalid_amount"
	case errors.Is(err, model.ErrOverflow), errors.Is(err, model.ErrUnderflow):
		reason = "ledger_divergence"
	}
	metrics.Rejections.WithLabelValues(op, reason).Inc()

	attrs = append(attrs, "err", err)
	if reason == "ledger_divergence" || reason == "other" {
		slog.Error(op+" failed", attrs...)
		return
	}
	slog.Warn(op+" rejected", attrs...)
}
