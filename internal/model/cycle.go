package model

import "github.com/shopspring/decimal"

// Status is the terminal outcome of one rebalance cycle.
type Status string

const (
	StatusExec  Status = "EXEC"
	StatusHold  Status = "HOLD"
	StatusSkip  Status = "SKIP"
	StatusError Status = "ERROR"
)

// Skip reason prefixes, kept machine-parseable for alerting.
const (
	ReasonGovernor = "governor"
	ReasonHealth   = "health"
	ReasonNoSize   = "no size or insufficient balance"
)

// CycleResult summarizes one full pass of the orchestrator.
type CycleResult struct {
	Status     Status
	Decision   Decision
	Reason     string // populated for SKIP
	Err        error  // populated for ERROR
	Spot       decimal.Decimal
	Robust     decimal.Decimal
	SolPerUSDC decimal.Decimal // USDC per SOL, reference rate
	Balances   Balances
	Signatures []string // populated for EXEC
}
