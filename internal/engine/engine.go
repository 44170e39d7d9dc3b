// Package engine maps prices and balances to a sized trade decision.
package engine

import (
	"errors"

	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
)

// ErrRateUnavailable is returned when the reference rate is zero or
// negative, making the USD band untranslatable.
var ErrRateUnavailable = errors.New("reference stable rate unavailable")

var bpsDenom = decimal.NewFromInt(10000)

// Params are the fixed sizing inputs, read once from config.
type Params struct {
	USDLower        decimal.Decimal
	USDUpper        decimal.Decimal
	CapBps          int64
	TreasuryGCMin   decimal.Decimal
	VaultStableMin  decimal.Decimal
	PreferredStable string // "USDC" or "USDT"
	USDCMint        string
	USDTMint        string
}

// Decide is a pure function of (spot SOL/GC, reference USDC/SOL, balances).
// The per-cycle cap is taken against the current balance every cycle, not
// cumulatively; the daily governor handles the cumulative cap.
func Decide(spot, refRate decimal.Decimal, bals model.Balances, p Params) (model.Decision, error) {
	if !refRate.IsPositive() {
		return model.Decision{}, ErrRateUnavailable
	}

	band := model.Band{
		Lower: p.USDLower.Div(refRate),
		Upper: p.USDUpper.Div(refRate),
	}
	dec := model.Decision{Action: model.ActionHold, Band: band}

	switch {
	case spot.GreaterThan(band.Upper):
		dec.Action = model.ActionSell
		dec.SizeGC = sized(bals.TreasuryGC, p.CapBps, p.TreasuryGCMin)

	case spot.LessThan(band.Lower):
		dec.Action = model.ActionBuy
		mint, bal := chooseStable(bals, p)
		dec.StableMint = mint
		size := sized(bal, p.CapBps, p.VaultStableMin)
		if mint == p.USDCMint {
			dec.SizeUSDC = size
		} else {
			dec.SizeUSDT = size
		}
	}
	return dec, nil
}

// sized caps a trade at capBps of the balance and leaves the reserve floor
// untouched, never going negative.
func sized(balance decimal.Decimal, capBps int64, min decimal.Decimal) decimal.Decimal {
	cap := balance.Mul(decimal.NewFromInt(capBps)).Div(bpsDenom)
	avail := balance.Sub(min)
	size := decimal.Min(cap, avail)
	if size.IsNegative() {
		return decimal.Zero
	}
	return size
}

// chooseStable picks the stable funding a BUY: the preferred stable when it
// holds more than its reserve floor, otherwise the other stable if it has
// anything, otherwise the preferred stable (which will size to zero).
func chooseStable(bals model.Balances, p Params) (string, decimal.Decimal) {
	if p.PreferredStable == "USDT" && bals.VaultUSDT.GreaterThan(p.VaultStableMin) {
		return p.USDTMint, bals.VaultUSDT
	}
	if bals.VaultUSDC.GreaterThan(p.VaultStableMin) {
		return p.USDCMint, bals.VaultUSDC
	}
	if bals.VaultUSDT.IsPositive() {
		return p.USDTMint, bals.VaultUSDT
	}
	if p.PreferredStable == "USDT" {
		return p.USDTMint, decimal.Zero
	}
	return p.USDCMint, decimal.Zero
}
