package notifier

import (
	"fmt"
	"strings"

	"CorridorBot/internal/governor"
	"CorridorBot/internal/model"
)

// FormatCycleReport formats one cycle outcome for the Telegram channel.
func FormatCycleReport(res model.CycleResult) string {
	var b strings.Builder
	b.WriteString("🏦 <b>CorridorBot</b>\n")

	switch res.Status {
	case model.StatusError:
		b.WriteString(fmt.Sprintf("❌ ERROR: %v\n", res.Err))
		return b.String()
	case model.StatusSkip:
		b.WriteString(fmt.Sprintf("⏭ SKIP (%s): %s\n", res.Decision.Action, res.Reason))
	case model.StatusHold:
		b.WriteString("HOLD — price inside band\n")
	case model.StatusExec:
		b.WriteString(fmt.Sprintf("✅ %s executed\n", res.Decision.Action))
		if len(res.Signatures) > 0 {
			b.WriteString(fmt.Sprintf("sig: <code>%s</code>\n", res.Signatures[0]))
		}
	}

	b.WriteString(fmt.Sprintf("sizes GC:%s USDC:%s USDT:%s\n",
		res.Decision.SizeGC, res.Decision.SizeUSDC, res.Decision.SizeUSDT))
	b.WriteString(fmt.Sprintf("spot %s SOL/GC | twap %s | band [%s, %s]\n",
		res.Spot, res.Robust, res.Decision.Band.Lower, res.Decision.Band.Upper))
	b.WriteString(fmt.Sprintf("balances GC:%s USDC:%s USDT:%s",
		res.Balances.TreasuryGC, res.Balances.VaultUSDC, res.Balances.VaultUSDT))
	return b.String()
}

// FormatDayState formats today's governor ledger for display.
func FormatDayState(ds governor.DayState) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📅 <b>Day %s</b>\n\n", ds.Day))
	b.WriteString(fmt.Sprintf("baseline GC: %s\n", ds.BaseGC))
	b.WriteString(fmt.Sprintf("baseline USDC: %s | USDT: %s\n", ds.BaseUSDC, ds.BaseUSDT))
	b.WriteString(fmt.Sprintf("sold GC today: %s\n", ds.SoldGC))
	b.WriteString(fmt.Sprintf("spent USDC: %s | USDT: %s", ds.SpentUSDC, ds.SpentUSDT))
	return b.String()
}
