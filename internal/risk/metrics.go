package risk

import "papertrade-enginev1/internal/model"

// PortfolioMetrics are heuristic account-level risk figures.
//
// These are illustrative placeholders derived from a single P&L ratio, not a
// validated risk model: no return series, no benchmark covariance, no
// confidence interval backs them. They exist for display only and nothing in
// the execution path depends on them.
type PortfolioMetrics struct {
	Beta        float64 `json:"beta"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	ValueAtRisk float64 `json:"value_at_risk"` // dollar figure, 1-day horizon
	Volatility  float64 `json:"volatility"`    // percent
}

// HeuristicMetrics derives placeholder metrics from the account's current
// P&L percentage and valuation.
func HeuristicMetrics(a *model.Account) PortfolioMetrics {
	pnlPct := a.TotalPnLPercent

	beta := 1 + pnlPct/100
	if beta < 0.5 {
		beta = 0.5
	} else if beta > 2.0 {
		beta = 2.0
	}

	vol := pnlPct
	if vol < 0 {
		vol = -vol
	}
	if vol < 5 {
		vol = 5
	}

	return PortfolioMetrics{
		Beta:        beta,
		SharpeRatio: pnlPct / 10,
		ValueAtRisk: a.TotalValue * 0.05,
		Volatility:  vol,
	}
}
