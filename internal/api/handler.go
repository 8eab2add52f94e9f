// Package api provides the HTTP handlers for deposit notifications,
// unlocks, token transfers and the read-only ledger queries, plus the
// WebSocket event hub.
//
// Amounts travel as JSON strings so no precision is lost.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atmx/lockup-engine/internal/hook"
	"github.com/atmx/lockup-engine/internal/lockup"
	"github.com/atmx/lockup-engine/internal/model"
)

// Handler exposes one lockup engine over HTTP.
type Handler struct {
	engine *lockup.Engine
}

// NewHandler creates a handler for engine.
func NewHandler(engine *lockup.Engine) *Handler {
	return &Handler{engine: engine}
}

// Routes mounts the API under r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/receive", h.Receive)
	r.Post("/unlock", h.Unlock)
	r.Post("/transfer", h.Transfer)
	r.Get("/investment", h.GetInvestment)
	r.Get("/positions/{owner}", h.GetPositions)
	r.Get("/balance/{address}", h.GetBalance)
	r.Get("/token", h.GetTokenInfo)
}

// --- Request/Response types ---

// ReceiveRequest is the JSON body for POST /receive. Caller is the token
// contract that forwarded the deposit, Sender the depositor.
type ReceiveRequest struct {
	Caller string          `json:"caller"`
	Sender string          `json:"sender"`
	Amount decimal.Decimal `json:"amount"`
	Msg    []byte          `json:"msg"` // base64 in JSON
}

// UnlockRequest is the JSON body for POST /unlock.
type UnlockRequest struct {
	Caller string          `json:"caller"`
	ID     string          `json:"idx"`
	Amount decimal.Decimal `json:"amount"`
}

// TransferRequest is the JSON body for POST /transfer.
type TransferRequest struct {
	Caller    string          `json:"caller"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// BalanceResponse is returned from GET /balance/{address}.
type BalanceResponse struct {
	Address string          `json:"address"`
	Balance decimal.Decimal `json:"balance"`
}

// PositionsResponse is returned from GET /positions/{owner}.
type PositionsResponse struct {
	Owner     string           `json:"owner"`
	Positions []model.Position `json:"positions"`
}

// --- HTTP Handlers ---

// Receive handles POST /api/v1/receive
func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	var req ReceiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := h.engine.Receive(r.Context(), req.Caller, hook.ReceiveMsg{
		Sender: req.Sender,
		Amount: req.Amount,
		Msg:    req.Msg,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// Unlock handles POST /api/v1/unlock
func (h *Handler) Unlock(w http.ResponseWriter, r *http.Request) {
	var req UnlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Caller == "" || req.ID == "" {
		writeError(w, "caller and idx are required", http.StatusBadRequest)
		return
	}

	res, err := h.engine.Unlock(r.Context(), lockup.UnlockRequest{
		Caller: req.Caller,
		ID:     req.ID,
		Amount: req.Amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Transfer handles POST /api/v1/transfer
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := h.engine.Transfer(r.Context(), lockup.TransferRequest{
		Caller:    req.Caller,
		Recipient: req.Recipient,
		Amount:    req.Amount,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	bal, err := h.engine.Balance(r.Context(), req.Caller)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Address: req.Caller, Balance: bal})
}

// GetInvestment handles GET /api/v1/investment
func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	inv, err := h.engine.Investment(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// GetPositions handles GET /api/v1/positions/{owner}
func (h *Handler) GetPositions(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	ps, err := h.engine.Positions(r.Context(), owner)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PositionsResponse{Owner: owner, Positions: ps})
}

// GetBalance handles GET /api/v1/balance/{address}
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr := chi.URLParam(r, "address")
	bal, err := h.engine.Balance(r.Context(), addr)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{Address: addr, Balance: bal})
}

// GetTokenInfo handles GET /api/v1/token
func (h *Handler) GetTokenInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.engine.TokenInfo(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateID), errors.Is(err, model.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidPayload), errors.Is(err, model.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotInitialized):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "err", err)
		writeError(w, "internal error", status)
		return
	}
	writeError(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
