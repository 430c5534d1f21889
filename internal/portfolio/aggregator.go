package portfolio

import "papertrade-enginev1/internal/model"

// Recompute refreshes an account's valuation from its cash and priced
// positions. It is called after every cash or position mutation so the
// totals are never stale. Repeated calls with no intervening mutation are
// idempotent.
func Recompute(a *model.Account, positions []model.Position) {
	var marketValue float64
	for i := range positions {
		marketValue += positions[i].MarketValue
	}
	a.TotalValue = a.AvailableCash + marketValue
	a.TotalPnL = a.TotalValue - a.InitialBalance
	if a.InitialBalance != 0 {
		a.TotalPnLPercent = a.TotalPnL / a.InitialBalance * 100
	} else {
		// Unreachable with account-creation validation, but never divide.
		a.TotalPnLPercent = 0
	}
}
