package lockup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/metrics"
	"github.com/atmx/lockup-engine/internal/model"
	"github.com/atmx/lockup-engine/internal/store"
)

// TransferRequest moves Amount derivative tokens from Caller to Recipient.
type TransferRequest struct {
	Caller    string
	Recipient string
	Amount    decimal.Decimal
}

// Transfer moves derivative tokens between holders. The aggregate ledger is
// untouched; a holder who bought or was sent tokens can burn them to close
// their own positions.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	defer func() { metrics.OperationLatency.WithLabelValues("transfer").Observe(time.Since(start).Seconds()) }()

	err := e.store.Update(ctx, func(tx store.Tx) error {
		if req.Caller == "" {
			return fmt.Errorf("%w: sender is required", model.ErrInvalidPayload)
		}
		return e.bank.Transfer(ctx, tx, req.Caller, req.Recipient, req.Amount)
	})
	if err != nil {
		reject("transfer", err, "from", req.Caller, "to", req.Recipient, "amount", req.Amount.String())
		return err
	}

	metrics.TransfersTotal.Inc()
	slog.Info("tokens transferred",
		"from", req.Caller,
		"to", req.Recipient,
		"amount", req.Amount.String(),
	)

	e.publish(ctx, model.Event{
		Action:    model.ActionTransfer,
		Address:   req.Caller,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Timestamp: e.now(),
	})
	return nil
}
