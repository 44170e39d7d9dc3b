package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balances is a point-in-time snapshot of the treasury holdings.
// It is re-read from chain every cycle and never cached.
type Balances struct {
	TreasuryGC decimal.Decimal
	VaultUSDC  decimal.Decimal
	VaultUSDT  decimal.Decimal
	FetchedAt  time.Time
}
