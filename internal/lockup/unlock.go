package lockup

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/fee"
	"github.com/atmx/lockup-engine/internal/metrics"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// UnlockRequest asks to release Amount of position ID's principal.
type UnlockRequest struct {
	Caller string
	ID     string
	Amount decimal.Decimal
}

// UnlockResult reports a committed unlock.
type UnlockResult struct {
	// Released is the base asset returned to the caller, net of penalty.
	Released decimal.Decimal `json:"unlocked"`
	Penalty  decimal.Decimal `json:"penalty"`
	Burnt    decimal.Decimal `json:"burnt"`
	Matured  bool            `json:"matured"`
	// Remaining is the principal left in the position; zero means it was closed.
	Remaining decimal.Decimal `json:"remaining"`
}

// Closed reports whether the unlock deleted the position.
func (r UnlockResult) Closed() bool {
	return r.Remaining.IsZero()
}

// Unlock burns Amount derivative tokens from the caller and releases the
// same amount of principal. Before maturity floor(amount*penalty) of it is
// kept as a fee. The penalty is charged on the released slice only, so
// repeated partial unlocks each pay on their own amount.
func (e *Engine) Unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { metrics.OperationLatency.WithLabelValues("unlock").Observe(time.Since(start).Seconds()) }()

	res, err := e.unlock(ctx, req)
	if err != nil {
		reject("unlock", err, "idx", req.ID, "to", req.Caller, "amount", req.Amount.String())
		return UnlockResult{}, err
	}

	metrics.UnlocksTotal.WithLabelValues(strconv.FormatBool(res.Matured)).Inc()
	if res.Closed() {
		metrics.OpenPositions.Dec()
	}

	slog.Info("position unlocked",
		"idx", req.ID,
		"to", req.Caller,
		"unlocked", res.Released.String(),
		"penalty", res.Penalty.String(),
		"burnt", res.Burnt.String(),
		"remaining", res.Remaining.String(),
	)

	e.publish(ctx, model.Event{
		Action:     model.ActionUnlock,
		Address:    req.Caller,
		PositionID: req.ID,
		Unlocked:   res.Released,
		Burnt:      res.Burnt,
		Penalty:    res.Penalty,
		Timestamp:  e.last,
	})
	return res, nil
}

func (e *Engine) unlock(ctx context.Context, req UnlockRequest) (UnlockResult, error) {
	now := e.now()
	var res UnlockResult
	var committed model.Supply

	err := e.store.Update(ctx, func(tx store.Tx) error {
		cfg, err := tx.Config(ctx)
		if err != nil {
			return err
		}
		pos, err := tx.Position(ctx, req.ID)
		if err != nil {
			return err
		}
		if req.Caller != pos.Owner {
			return fmt.Errorf("%w: %s does not own position %s", model.ErrUnauthorized, req.Caller, req.ID)
		}
		if err := fee.ValidateAmount(req.Amount); err != nil {
			return err
		}
		if req.Amount.GreaterThan(pos.Principal) {
			return fmt.Errorf("%w: position %s holds %s, unlock asks %s",
				model.ErrInsufficientBalance, req.ID, pos.Principal, req.Amount)
		}
		if req.Amount.IsZero() {
			return fmt.Errorf("%w: unlock amount must be positive", model.ErrInvalidAmount)
		}

		matured := pos.Matured(now)
		penalty := decimal.Zero
		if !matured {
			penalty = fee.Portion(req.Amount, cfg.Penalty)
		}
		released := req.Amount.Sub(penalty)

		if err := e.bank.Burn(ctx, tx, req.Caller, req.Amount); err != nil {
			return fmt.Errorf("burn %s from %s: %w", req.Amount, req.Caller, err)
		}

		// locked tracks outstanding principal, so it drops by the full
		// released slice; the penalty part moves into fees.
		supply, err := tx.Supply(ctx)
		if err != nil {
			return err
		}
		if supply.Locked, err = fee.CheckedSub(supply.Locked, req.Amount); err != nil {
			return fmt.Errorf("locked: %w", err)
		}
		if supply.Issued, err = fee.CheckedSub(supply.Issued, req.Amount); err != nil {
			return fmt.Errorf("issued: %w", err)
		}
		if supply.Fees, err = fee.CheckedAdd(supply.Fees, penalty); err != nil {
			return fmt.Errorf("fees: %w", err)
		}
		if err := tx.PutSupply(ctx, supply); err != nil {
			return err
		}

		remaining := pos.Principal.Sub(req.Amount)
		if remaining.IsZero() {
			if err := tx.RemovePosition(ctx, pos.ID); err != nil {
				return err
			}
		} else {
			pos.Principal = remaining
			if err := tx.UpdatePosition(ctx, pos); err != nil {
				return err
			}
		}

		res = UnlockResult{
			Released:  released,
			Penalty:   penalty,
			Burnt:     req.Amount,
			Matured:   matured,
			Remaining: remaining,
		}
		committed = supply
		return nil
	})
	if err != nil {
		return UnlockResult{}, err
	}
	metrics.SetSupply(committed.Locked, committed.Issued, committed.Fees)
	return res, nil
}
