package lockup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/fee"
	"github.com/atmx/lockup-engine/internal/hook"
	"github.com/atmx/lockup-engine/internal/metrics"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// LockRequest asks to lock Amount of the base asset for Depositor.
// Caller is the address that forwarded the deposit; it must be the
// configured issuer.
type LockRequest struct {
	Caller    string
	Depositor string
	ID        string
	Amount    decimal.Decimal
	Class     model.LockClass
}

// LockResult reports a committed lock.
type LockResult struct {
	Position model.Position  `json:"position"`
	Tax      decimal.Decimal `json:"tax"`
	Minted   decimal.Decimal `json:"minted"`
}

// Receive handles a deposit notification from the token contract at
// caller. The caller is checked against the configured issuer before the
// payload is trusted.
func (e *Engine) Receive(ctx context.Context, caller string, msg hook.ReceiveMsg) (LockResult, error) {
	var cfg model.Config
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		cfg, err = tx.Config(ctx)
		return err
	})
	if err != nil {
		return LockResult{}, err
	}
	if caller != cfg.IssuerAddress {
		err := fmt.Errorf("%w: deposit forwarded by %s, not the issuer", model.ErrUnauthorized, caller)
		reject("lock", err, "caller", caller)
		return LockResult{}, err
	}

	l, err := hook.Parse(msg.Msg)
	if err != nil {
		reject("lock", err, "caller", caller, "sender", msg.Sender)
		return LockResult{}, err
	}

	return e.Lock(ctx, LockRequest{
		Caller:    caller,
		Depositor: msg.Sender,
		ID:        l.ID,
		Amount:    msg.Amount,
		Class:     l.Class,
	})
}

// Lock creates a position, books the deposit into the aggregate ledger and
// mints amount - floor(amount*tax) derivative tokens to the depositor.
func (e *Engine) Lock(ctx context.Context, req LockRequest) (LockResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { metrics.OperationLatency.WithLabelValues("lock").Observe(time.Since(start).Seconds()) }()

	res, err := e.lock(ctx, req)
	if err != nil {
		reject("lock", err, "idx", req.ID, "from", req.Depositor, "amount", req.Amount.String())
		return LockResult{}, err
	}

	metrics.LocksTotal.WithLabelValues(string(req.Class)).Inc()
	metrics.OpenPositions.Inc()

	slog.Info("position locked",
		"idx", res.Position.ID,
		"from", res.Position.Owner,
		"class", string(req.Class),
		"locked", res.Position.Principal.String(),
		"tax", res.Tax.String(),
		"minted", res.Minted.String(),
	)

	e.publish(ctx, model.Event{
		Action:     model.ActionLock,
		Address:    res.Position.Owner,
		PositionID: res.Position.ID,
		Locked:     res.Position.Principal,
		Minted:     res.Minted,
		Timestamp:  res.Position.OpenedAt,
	})
	return res, nil
}

func validateLock(req LockRequest) error {
	if !req.Class.Valid() {
		return fmt.Errorf("%w: unsupported lock class %q", model.ErrInvalidPayload, req.Class)
	}
	if err := hook.ValidateID(req.ID); err != nil {
		return err
	}
	if req.Depositor == "" {
		return fmt.Errorf("%w: depositor is required", model.ErrInvalidPayload)
	}
	if err := fee.ValidateAmount(req.Amount); err != nil {
		return err
	}
	if req.Amount.IsZero() {
		return fmt.Errorf("%w: lock amount must be positive", model.ErrInvalidAmount)
	}
	return nil
}

func (e *Engine) lock(ctx context.Context, req LockRequest) (LockResult, error) {
	now := e.now()
	var res LockResult
	var committed model.Supply

	err := e.store.Update(ctx, func(tx store.Tx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		if req.Caller != cfg.IssuerAddress {
			return fmt.Errorf("%w: deposit forwarded by %s, not the issuer", model.ErrUnauthorized, req.Caller)
		}
		if err := validateLock(req); err != nil {
			return err
		}

		tax, toIssue := fee.Split(req.Amount, cfg.Tax.For(req.Class))

		supply, err := tx.Supply(ctx)
		if err != nil {
			return err
		}
		if supply.Locked, err = fee.CheckedAdd(supply.Locked, req.Amount); err != nil {
			return fmt.Errorf("locked: %w", err)
		}
		if supply.Issued, err = fee.CheckedAdd(supply.Issued, toIssue); err != nil {
			return fmt.Errorf("issued: %w", err)
		}
		if supply.Fees, err = fee.CheckedAdd(supply.Fees, tax); err != nil {
			return fmt.Errorf("fees: %w", err)
		}

		pos := model.Position{
			ID:        req.ID,
			Owner:     req.Depositor,
			Principal: req.Amount,
			OpenedAt:  now,
			Duration:  cfg.Period.For(req.Class),
		}
		if err := tx.InsertPosition(ctx, pos); err != nil {
			return err
		}
		if err := tx.PutSupply(ctx, supply); err != nil {
			return err
		}

		// Mint last: nothing fallible remains after it.
		if err := e.bank.Mint(ctx, tx, req.Depositor, toIssue); err != nil {
			return fmt.Errorf("mint %s to %s: %w", toIssue, req.Depositor, err)
		}

		res = LockResult{Position: pos, Tax: tax, Minted: toIssue}
		committed = supply
		return nil
	})
	if err != nil {
		return LockResult{}, err
	}
	metrics.SetSupply(committed.Locked, committed.Issued, committed.Fees)
	return res, nil
}
