package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"CorridorBot/internal/engine"
	"CorridorBot/internal/governor"
	"CorridorBot/internal/model"
	"CorridorBot/internal/notifier"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type stubBalances struct {
	bals model.Balances
	err  error
}

func (s *stubBalances) Snapshot(context.Context) (model.Balances, error) { return s.bals, s.err }

type stubRates struct {
	spot, ref, robust decimal.Decimal
	err               error
}

func (s *stubRates) SpotRate(context.Context) (decimal.Decimal, error) { return s.spot, s.err }
func (s *stubRates) ReferenceStableRate(context.Context) (decimal.Decimal, error) {
	return s.ref, s.err
}
func (s *stubRates) RobustRate(context.Context) (decimal.Decimal, error) { return s.robust, s.err }

type stubGuard struct {
	ok     bool
	why    string
	err    error
	called int
}

func (s *stubGuard) Check(context.Context, model.Decision, decimal.Decimal, decimal.Decimal) (bool, string, error) {
	s.called++
	return s.ok, s.why, s.err
}

type stubExec struct {
	sigs   []string
	err    error
	called int
	last   model.Decision
}

func (s *stubExec) Execute(_ context.Context, dec model.Decision) ([]string, error) {
	s.called++
	s.last = dec
	return s.sigs, s.err
}

type stubGovernor struct {
	ds       governor.DayState
	ok       bool
	why      string
	opened   int
	checked  int
	recorded int
}

func (s *stubGovernor) Open(model.Balances) (governor.DayState, error) {
	s.opened++
	return s.ds, nil
}
func (s *stubGovernor) Check(model.Decision, governor.DayState) (bool, string) {
	s.checked++
	return s.ok, s.why
}
func (s *stubGovernor) Record(model.Decision) error { s.recorded++; return nil }
func (s *stubGovernor) Today() (governor.DayState, error) {
	if s.opened == 0 {
		return governor.DayState{}, governor.ErrNoDayState
	}
	return s.ds, nil
}

type stubRecorder struct {
	results []model.CycleResult
}

func (s *stubRecorder) RecordCycle(res model.CycleResult) error {
	s.results = append(s.results, res)
	return nil
}

type fixture struct {
	sched    *Scheduler
	guard    *stubGuard
	exec     *stubExec
	gov      *stubGovernor
	recorder *stubRecorder
}

func newFixture(bals model.Balances, spot, ref, robust string) *fixture {
	f := &fixture{
		guard:    &stubGuard{ok: true},
		exec:     &stubExec{sigs: []string{"sig1"}},
		gov:      &stubGovernor{ok: true},
		recorder: &stubRecorder{},
	}
	params := engine.Params{
		USDLower:        dec("0.14"),
		USDUpper:        dec("0.20"),
		CapBps:          100,
		PreferredStable: "USDC",
		USDCMint:        "USDC_MINT",
		USDTMint:        "USDT_MINT",
	}
	tn := notifier.NewTelegramNotifier("", "", zerolog.Nop())
	f.sched = NewScheduler(context.Background(),
		&stubBalances{bals: bals},
		&stubRates{spot: dec(spot), ref: dec(ref), robust: dec(robust)},
		f.guard, f.exec, f.gov, f.recorder, tn, params, zerolog.Nop())
	return f
}

func (f *fixture) run() model.CycleResult {
	f.sched.RunNow()
	f.sched.mu.Lock()
	defer f.sched.mu.Unlock()
	return *f.sched.last
}

func TestCycle_SellExecutes(t *testing.T) {
	// Spot well above the band: sell 100 bps of the treasury.
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")

	res := f.run()
	require.Equal(t, model.StatusExec, res.Status)
	require.Equal(t, model.ActionSell, res.Decision.Action)
	require.Equal(t, []string{"sig1"}, res.Signatures)
	require.True(t, f.exec.last.SizeGC.Equal(dec("10")))
	require.Equal(t, 1, f.gov.recorded, "executed trade must be recorded")
	require.Len(t, f.recorder.results, 1)
}

func TestCycle_HoldSkipsGates(t *testing.T) {
	// Inside the band: hold, and neither gate nor executor runs. The day row
	// is still seeded.
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.17", "1", "0.17")

	res := f.run()
	require.Equal(t, model.StatusHold, res.Status)
	require.Equal(t, 1, f.gov.opened)
	require.Zero(t, f.gov.checked)
	require.Zero(t, f.guard.called)
	require.Zero(t, f.exec.called)
	require.Zero(t, f.gov.recorded)
}

func TestCycle_GovernorRejects(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")
	f.gov.ok = false
	f.gov.why = "daily_gc_cap_exceeded used=39.9 add=10 cap=40"

	res := f.run()
	require.Equal(t, model.StatusSkip, res.Status)
	require.Contains(t, res.Reason, model.ReasonGovernor)
	require.Contains(t, res.Reason, "daily_gc_cap_exceeded")
	require.Zero(t, f.guard.called, "health check must not run after a governor skip")
	require.Zero(t, f.exec.called)
	require.Zero(t, f.gov.recorded)
}

func TestCycle_HealthRejects(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")
	f.guard.ok = false
	f.guard.why = "price_impact_bps=450"

	res := f.run()
	require.Equal(t, model.StatusSkip, res.Status)
	require.Contains(t, res.Reason, model.ReasonHealth)
	require.Contains(t, res.Reason, "price_impact_bps=450")
	require.Zero(t, f.exec.called)
	require.Zero(t, f.gov.recorded)
}

func TestCycle_GuardErrorIsFatal(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")
	f.guard.err = errors.New("quote host unreachable")

	res := f.run()
	require.Equal(t, model.StatusError, res.Status)
	require.ErrorContains(t, res.Err, "quote host unreachable")
	require.Zero(t, f.exec.called)
}

func TestCycle_ExecutionFailureLeavesCountersUnadvanced(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")
	f.exec.err = errors.New("relay send: status 502")
	f.exec.sigs = nil

	res := f.run()
	require.Equal(t, model.StatusError, res.Status)
	require.Zero(t, f.gov.recorded, "a failed execution must not advance the daily counters")
}

func TestCycle_EmptyTreasurySkips(t *testing.T) {
	// Above the band but nothing to sell: a soft skip, not an error.
	f := newFixture(model.Balances{}, "0.25", "1", "0.25")

	res := f.run()
	require.Equal(t, model.StatusSkip, res.Status)
	require.Equal(t, model.ReasonNoSize, res.Reason)
	require.Zero(t, f.exec.called)
}

func TestCycle_RateFailureIsError(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.25", "1", "0.25")
	rates := f.sched.Rates.(*stubRates)
	rates.err = errors.New("compute swap: status 500")

	res := f.run()
	require.Equal(t, model.StatusError, res.Status)
	require.Zero(t, f.gov.opened, "day state must not be touched when rates fail")
	require.Len(t, f.recorder.results, 1, "failed cycles are still recorded")
}

func TestHandleCommand_StatusBeforeFirstCycle(t *testing.T) {
	f := newFixture(model.Balances{}, "0.17", "1", "0.17")
	require.Equal(t, "no cycle has run yet", f.sched.HandleCommand("/status"))
}

func TestHandleCommand_StatusAfterCycle(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.17", "1", "0.17")
	f.run()
	reply := f.sched.HandleCommand("/status")
	require.NotEqual(t, "no cycle has run yet", reply)
	require.NotEmpty(t, reply)
}

func TestHandleCommand_Day(t *testing.T) {
	f := newFixture(model.Balances{TreasuryGC: dec("1000")}, "0.17", "1", "0.17")

	reply := f.sched.HandleCommand("/day")
	require.Contains(t, reply, "no day state yet")

	f.run()
	reply = f.sched.HandleCommand("/day")
	require.NotContains(t, reply, "no day state yet")
}

func TestHandleCommand_Unknown(t *testing.T) {
	f := newFixture(model.Balances{}, "0.17", "1", "0.17")
	reply := f.sched.HandleCommand("/bogus")
	require.Contains(t, reply, "/status")
	require.Contains(t, reply, "/run")
}
