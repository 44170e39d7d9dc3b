package governor

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"CorridorBot/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "governor.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func fixedGovernor(s *Store, dailyMaxBps int64) *Governor {
	g := New(s, dailyMaxBps)
	g.now = func() time.Time {
		return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	}
	return g
}

func TestGetOrCreate_Idempotent(t *testing.T) {
	s := testStore(t)

	first, err := s.GetOrCreate("2026-03-14", model.Balances{
		TreasuryGC: dec("1000"), VaultUSDC: dec("500"), VaultUSDT: dec("250"),
	})
	require.NoError(t, err)
	require.True(t, first.BaseGC.Equal(dec("1000")))

	// A later call with different balances must not disturb the baseline.
	second, err := s.GetOrCreate("2026-03-14", model.Balances{
		TreasuryGC: dec("900"), VaultUSDC: dec("600"), VaultUSDT: dec("300"),
	})
	require.NoError(t, err)
	require.True(t, second.BaseGC.Equal(dec("1000")))
	require.True(t, second.BaseUSDC.Equal(dec("500")))
	require.True(t, second.BaseUSDT.Equal(dec("250")))
}

func TestGet_MissingDay(t *testing.T) {
	s := testStore(t)
	_, err := s.Get("2026-03-14")
	require.ErrorIs(t, err, ErrNoDayState)
}

func TestAddFlow_Accumulates(t *testing.T) {
	s := testStore(t)
	_, err := s.GetOrCreate("2026-03-14", model.Balances{TreasuryGC: dec("1000")})
	require.NoError(t, err)

	sell := model.Decision{Action: model.ActionSell, SizeGC: dec("7")}
	require.NoError(t, s.AddFlow("2026-03-14", sell))
	require.NoError(t, s.AddFlow("2026-03-14", sell))

	ds, err := s.Get("2026-03-14")
	require.NoError(t, err)
	require.True(t, ds.SoldGC.Equal(dec("14")), "sold_gc = %s", ds.SoldGC)
}

func TestAddFlow_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governor.db")

	s, err := OpenStore(path)
	require.NoError(t, err)
	_, err = s.GetOrCreate("2026-03-14", model.Balances{VaultUSDC: dec("500")})
	require.NoError(t, err)
	require.NoError(t, s.AddFlow("2026-03-14", model.Decision{
		Action: model.ActionBuy, SizeUSDC: dec("3.25"),
	}))
	require.NoError(t, s.Close())

	s2, err := OpenStore(path)
	require.NoError(t, err)
	defer s2.Close()
	ds, err := s2.Get("2026-03-14")
	require.NoError(t, err)
	require.True(t, ds.SpentUSDC.Equal(dec("3.25")))
}

func TestCheck_SellCap(t *testing.T) {
	s := testStore(t)
	g := fixedGovernor(s, 400) // 400 bps of 1000 GC = 40 GC per day

	ds, err := g.Open(model.Balances{TreasuryGC: dec("1000")})
	require.NoError(t, err)

	// Exactly at the cap passes.
	ok, reason := g.Check(model.Decision{Action: model.ActionSell, SizeGC: dec("40")}, ds)
	require.True(t, ok, reason)

	// 39.9 used, asking for 0.2 more lands at 40.1: over by one tenth.
	require.NoError(t, g.Record(model.Decision{Action: model.ActionSell, SizeGC: dec("39.9")}))
	ds, err = g.Today()
	require.NoError(t, err)
	ok, reason = g.Check(model.Decision{Action: model.ActionSell, SizeGC: dec("0.2")}, ds)
	require.False(t, ok)
	require.Contains(t, reason, "daily_gc_cap_exceeded")

	// The remaining 0.1 still fits.
	ok, _ = g.Check(model.Decision{Action: model.ActionSell, SizeGC: dec("0.1")}, ds)
	require.True(t, ok)
}

func TestCheck_StableCapsIndependent(t *testing.T) {
	s := testStore(t)
	g := fixedGovernor(s, 400) // caps: 4 USDC, 2 USDT

	ds, err := g.Open(model.Balances{VaultUSDC: dec("100"), VaultUSDT: dec("50")})
	require.NoError(t, err)

	ok, _ := g.Check(model.Decision{Action: model.ActionBuy, SizeUSDC: dec("4")}, ds)
	require.True(t, ok)

	ok, reason := g.Check(model.Decision{Action: model.ActionBuy, SizeUSDC: dec("4.01")}, ds)
	require.False(t, ok)
	require.Contains(t, reason, "stable=USDC")

	// USDT is judged against its own baseline.
	ok, reason = g.Check(model.Decision{Action: model.ActionBuy, SizeUSDT: dec("2.5")}, ds)
	require.False(t, ok)
	require.Contains(t, reason, "stable=USDT")
}

func TestCheck_HoldAlwaysPasses(t *testing.T) {
	s := testStore(t)
	g := fixedGovernor(s, 0)
	ds, err := g.Open(model.Balances{})
	require.NoError(t, err)
	ok, _ := g.Check(model.Decision{Action: model.ActionHold}, ds)
	require.True(t, ok)
}

func TestDayKey_UTC(t *testing.T) {
	// 23:30 in UTC-5 is already the next day in UTC.
	loc := time.FixedZone("UTC-5", -5*3600)
	key := DayKey(time.Date(2026, 3, 14, 23, 30, 0, 0, loc))
	require.Equal(t, "2026-03-15", key)
}

func TestRecordCycle_Appends(t *testing.T) {
	s := testStore(t)
	res := model.CycleResult{
		Status: model.StatusExec,
		Decision: model.Decision{
			Action: model.ActionSell,
			SizeGC: dec("10"),
			Band:   model.Band{Lower: dec("0.14"), Upper: dec("0.20")},
		},
		Spot:       dec("0.25"),
		Robust:     dec("0.24"),
		SolPerUSDC: dec("1"),
		Signatures: []string{"sigA", "sigB"},
	}
	require.NoError(t, s.RecordCycle(res))

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cycles`).Scan(&count))
	require.Equal(t, 1, count)

	var sigs string
	require.NoError(t, s.db.QueryRow(`SELECT signatures FROM cycles`).Scan(&sigs))
	require.Equal(t, "sigA,sigB", sigs)
}
