package risk

import (
	"testing"
	"time"

	"papertrade-enginev1/internal/model"
)

func fptr(f float64) *float64 { return &f }

func position(qty int64, avg float64) *model.Position {
	p := &model.Position{
		AccountID:    "acct",
		Symbol:       "AAPL",
		Quantity:     qty,
		AveragePrice: avg,
		EntryDate:    time.Now(),
		PeakPrice:    avg,
	}
	p.Reprice(avg)
	return p
}

func TestEvaluate_StopLoss(t *testing.T) {
	p := position(10, 100)
	p.StopLoss = fptr(90)

	p.Reprice(91)
	if got := Evaluate(p); got != ExitNone {
		t.Errorf("91 above stop: expected no exit, got %s", got)
	}

	p.Reprice(89)
	if got := Evaluate(p); got != ExitStopLoss {
		t.Errorf("89 below stop: expected stop_loss, got %s", got)
	}

	// Exact touch triggers
	p.Reprice(90)
	if got := Evaluate(p); got != ExitStopLoss {
		t.Errorf("exact stop price: expected stop_loss, got %s", got)
	}
}

func TestEvaluate_TakeProfit(t *testing.T) {
	p := position(10, 100)
	p.TakeProfit = fptr(120)

	p.Reprice(119)
	if got := Evaluate(p); got != ExitNone {
		t.Errorf("119: expected no exit, got %s", got)
	}
	p.Reprice(120)
	if got := Evaluate(p); got != ExitTakeProfit {
		t.Errorf("120: expected take_profit, got %s", got)
	}
}

func TestEvaluate_StopLossOutranksTakeProfit(t *testing.T) {
	// Degenerate parameters where both rules are satisfied at once:
	// the stop-loss must win, only one exit per cycle.
	p := position(10, 100)
	p.StopLoss = fptr(90)
	p.TakeProfit = fptr(80)

	p.Reprice(85)
	if got := Evaluate(p); got != ExitStopLoss {
		t.Errorf("expected stop_loss first per priority order, got %s", got)
	}
}

func TestEvaluate_TrailingStopRatchet(t *testing.T) {
	p := position(10, 100)
	p.TrailingStop = fptr(10) // 10% below peak

	// Price runs up: peak ratchets, no exit
	p.Reprice(110)
	if got := Evaluate(p); got != ExitNone {
		t.Errorf("rising price: expected no exit, got %s", got)
	}
	p.Reprice(130)
	if p.PeakPrice != 130 {
		t.Fatalf("peak = %.2f, want 130", p.PeakPrice)
	}

	// Dip that stays above 130*0.9=117: no exit, and the peak must NOT fall
	p.Reprice(120)
	if p.PeakPrice != 130 {
		t.Errorf("peak fell to %.2f on a dip; it must only ratchet upward", p.PeakPrice)
	}
	if got := Evaluate(p); got != ExitNone {
		t.Errorf("120 above trigger 117: expected no exit, got %s", got)
	}

	// Drop through the trigger derived from the true running maximum
	p.Reprice(116)
	if got := Evaluate(p); got != ExitTrailingStop {
		t.Errorf("116 below trigger 117: expected trailing_stop, got %s", got)
	}
}

func TestTrailingTrigger(t *testing.T) {
	if got := TrailingTrigger(200, 5); got != 190 {
		t.Errorf("TrailingTrigger(200, 5) = %.2f, want 190", got)
	}
}

func TestEvaluate_NoParams(t *testing.T) {
	p := position(10, 100)
	p.Reprice(1)
	if got := Evaluate(p); got != ExitNone {
		t.Errorf("no risk params: expected no exit, got %s", got)
	}
}

func TestValidateParams(t *testing.T) {
	if err := ValidateParams(fptr(90), nil, nil); err != nil {
		t.Errorf("valid stop-loss rejected: %v", err)
	}
	if err := ValidateParams(nil, nil, nil); err == nil {
		t.Error("all-nil params must be rejected")
	}
	if err := ValidateParams(fptr(-1), nil, nil); err == nil {
		t.Error("negative stop-loss must be rejected")
	}
	if err := ValidateParams(nil, nil, fptr(100)); err == nil {
		t.Error("100%% trail must be rejected")
	}
}

func TestHeuristicMetrics_Clamps(t *testing.T) {
	m := HeuristicMetrics(&model.Account{TotalPnLPercent: 300, TotalValue: 100000})
	if m.Beta != 2.0 {
		t.Errorf("beta clamp high: got %.2f", m.Beta)
	}
	m = HeuristicMetrics(&model.Account{TotalPnLPercent: -90, TotalValue: 10000})
	if m.Beta != 0.5 {
		t.Errorf("beta clamp low: got %.2f", m.Beta)
	}
	if m.ValueAtRisk != 500 {
		t.Errorf("VaR: got %.2f", m.ValueAtRisk)
	}
}
