package model

import "github.com/shopspring/decimal"

// Action is the direction the rebalancer takes for one cycle.
type Action string

const (
	ActionSell Action = "SELL"
	ActionBuy  Action = "BUY"
	ActionHold Action = "HOLD"
)

// Band holds the corridor bounds in SOL per GC, derived each cycle from the
// USD thresholds and the current SOL/USDC rate.
type Band struct {
	Lower decimal.Decimal
	Upper decimal.Decimal
}

// Decision is the sized trade proposal for one cycle. It is computed once
// and passed by value through the governor and health checks unchanged.
type Decision struct {
	Action     Action
	SizeGC     decimal.Decimal
	SizeUSDC   decimal.Decimal
	SizeUSDT   decimal.Decimal
	StableMint string // mint funding a BUY; empty for SELL/HOLD
	Band       Band
}

// StableSize returns the stable-side size of a BUY (zero otherwise).
func (d Decision) StableSize() decimal.Decimal {
	if d.SizeUSDC.IsPositive() {
		return d.SizeUSDC
	}
	return d.SizeUSDT
}
