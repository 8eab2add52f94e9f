// Package model defines the core domain types shared across the lockup engine.
// Amounts are integral shopspring decimals; floats never carry money.
package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LockClass selects one of the two configured lock spans.
type LockClass string

const (
	LockLong  LockClass = "long"
	LockShort LockClass = "short"
)

// Valid reports whether c names a known lock class.
func (c LockClass) Valid() bool {
	return c == LockLong || c == LockShort
}

// LockPeriod holds the two lock spans.
type LockPeriod struct {
	Long  time.Duration `json:"long"`
	Short time.Duration `json:"short"`
}

// For returns the span configured for class c.
func (p LockPeriod) For(c LockClass) time.Duration {
	if c == LockShort {
		return p.Short
	}
	return p.Long
}

// LockTax holds the issuance tax rate per lock class.
type LockTax struct {
	Long  decimal.Decimal `json:"long"`
	Short decimal.Decimal `json:"short"`
}

// For returns the tax rate configured for class c.
func (t LockTax) For(c LockClass) decimal.Decimal {
	if c == LockShort {
		return t.Short
	}
	return t.Long
}

// TokenInfo describes the derivative token issued against locked positions.
type TokenInfo struct {
	Name        string          `json:"name"`
	Symbol      string          `json:"symbol"`
	Decimals    uint8           `json:"decimals"`
	TotalSupply decimal.Decimal `json:"total_supply"`
}

// Config is written once when the ledger is instantiated and never mutated.
type Config struct {
	// Owner created the ledger. It is reported but gates nothing.
	Owner      string `json:"owner"`
	StakeDenom string `json:"stake_denom"`
	// IssuerAddress is the only caller whose deposit notifications are
	// accepted as lock requests.
	IssuerAddress string          `json:"issuer_address"`
	Period        LockPeriod      `json:"period"`
	Tax           LockTax         `json:"tax"`
	Penalty       decimal.Decimal `json:"penalty"`
}

var one = decimal.NewFromInt(1)

// Validate checks rates and spans.
func (c Config) Validate() error {
	if c.IssuerAddress == "" {
		return fmt.Errorf("config: issuer address is required")
	}
	if c.StakeDenom == "" {
		return fmt.Errorf("config: stake denom is required")
	}
	if c.Period.Long < 0 || c.Period.Short < 0 {
		return fmt.Errorf("config: lock periods must not be negative")
	}
	rates := map[string]decimal.Decimal{
		"long tax":  c.Tax.Long,
		"short tax": c.Tax.Short,
		"penalty":   c.Penalty,
	}
	for name, r := range rates {
		if r.IsNegative() || r.GreaterThan(one) {
			return fmt.Errorf("config: %s %s outside [0,1]", name, r)
		}
	}
	return nil
}

// Position is one lock record. A stored position always has a positive
// principal; fully released positions are deleted, never zeroed.
type Position struct {
	ID        string          `json:"idx"`
	Owner     string          `json:"owner"`
	Principal decimal.Decimal `json:"amount"`
	OpenedAt  time.Time       `json:"date"`
	// Duration is frozen at lock time.
	Duration time.Duration `json:"period"`
}

// MaturesAt is the instant from which the position unlocks without penalty.
func (p Position) MaturesAt() time.Time {
	return p.OpenedAt.Add(p.Duration)
}

// Matured reports whether the lock span has elapsed at now.
func (p Position) Matured(now time.Time) bool {
	return !now.Before(p.MaturesAt())
}

// Supply is the aggregate ledger.
type Supply struct {
	// Issued is how many derivative tokens are outstanding.
	Issued decimal.Decimal `json:"issued"`
	// Locked is the base asset held against open positions.
	Locked decimal.Decimal `json:"locked"`
	// Fees is the base asset retained as tax and penalty.
	Fees decimal.Decimal `json:"fees"`
}

// Coin is an amount of a named denomination.
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// Investment is the aggregate read-only view of the ledger.
type Investment struct {
	Owner        string          `json:"owner"`
	Penalty      decimal.Decimal `json:"penalty"`
	TokenSupply  decimal.Decimal `json:"token_supply"`
	StakedTokens Coin            `json:"staked_tokens"`
	Fees         decimal.Decimal `json:"fees"`
	// NominalValue is locked / issued, or 1 when nothing is issued.
	NominalValue decimal.Decimal `json:"nominal_value"`
	Period       LockPeriod      `json:"period"`
	Tax          LockTax         `json:"tax"`
}

// Event actions.
const (
	ActionLock     = "lock"
	ActionUnlock   = "unlock"
	ActionTransfer = "transfer"
)

// Event is the observable record of a committed lock, unlock or token
// transfer. For transfers Address is the sender.
type Event struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Address    string          `json:"address"`
	PositionID string          `json:"idx"`
	Locked     decimal.Decimal `json:"locked"`
	Minted     decimal.Decimal `json:"minted"`
	Unlocked   decimal.Decimal `json:"unlocked"`
	Burnt      decimal.Decimal `json:"burnt"`
	Penalty    decimal.Decimal `json:"penalty"`
	Recipient  string          `json:"recipient,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}
