package governor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"CorridorBot/internal/model"
)

var bpsDenom = decimal.NewFromInt(10000)

// Governor gates trades against the rolling daily flow cap. It is the sole
// owner of the persisted DayState.
type Governor struct {
	store       *Store
	dailyMaxBps int64
	now         func() time.Time
}

// New builds a Governor over a Store.
func New(store *Store, dailyMaxBps int64) *Governor {
	return &Governor{store: store, dailyMaxBps: dailyMaxBps, now: time.Now}
}

// Open returns today's DayState, seeding the baseline from the given
// balances on the first cycle of a new UTC day.
func (g *Governor) Open(bals model.Balances) (DayState, error) {
	return g.store.GetOrCreate(DayKey(g.now()), bals)
}

// Check decides whether the proposed trade fits under the day's cap. A
// failed check is a soft skip: ok=false with a machine-parseable reason, not
// an error. A trade that would land exactly on the cap passes; one basis
// point over does not. There is no silent clamping.
func (g *Governor) Check(dec model.Decision, ds DayState) (bool, string) {
	capOf := func(base decimal.Decimal) decimal.Decimal {
		return base.Mul(decimal.NewFromInt(g.dailyMaxBps)).Div(bpsDenom)
	}

	switch dec.Action {
	case model.ActionSell:
		cap := capOf(ds.BaseGC)
		if ds.SoldGC.Add(dec.SizeGC).GreaterThan(cap) {
			return false, fmt.Sprintf("daily_gc_cap_exceeded used=%s add=%s cap=%s",
				ds.SoldGC, dec.SizeGC, cap)
		}
	case model.ActionBuy:
		if dec.SizeUSDC.IsPositive() {
			cap := capOf(ds.BaseUSDC)
			if ds.SpentUSDC.Add(dec.SizeUSDC).GreaterThan(cap) {
				return false, fmt.Sprintf("daily_stable_cap_exceeded stable=USDC used=%s add=%s cap=%s",
					ds.SpentUSDC, dec.SizeUSDC, cap)
			}
		}
		if dec.SizeUSDT.IsPositive() {
			cap := capOf(ds.BaseUSDT)
			if ds.SpentUSDT.Add(dec.SizeUSDT).GreaterThan(cap) {
				return false, fmt.Sprintf("daily_stable_cap_exceeded stable=USDT used=%s add=%s cap=%s",
					ds.SpentUSDT, dec.SizeUSDT, cap)
			}
		}
	}
	return true, ""
}

// Today returns today's DayState without creating it.
func (g *Governor) Today() (DayState, error) {
	return g.store.Get(DayKey(g.now()))
}

// Record adds the executed trade to today's counters. Called only after the
// execution router reports full success, so a mid-batch failure leaves the
// counters unadvanced.
func (g *Governor) Record(dec model.Decision) error {
	return g.store.AddFlow(DayKey(g.now()), dec)
}
