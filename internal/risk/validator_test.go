package risk

import (
	"errors"
	"testing"

	"copy-trader/internal/config"
	"copy-trader/internal/signal"
)

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		MaxLeverage:    20,
		LeveragePolicy: config.LeveragePolicyClamp,
	}
}

func makeLongIntent() *signal.Intent {
	return &signal.Intent{
		Symbol:    "BTC",
		Side:      signal.SideLong,
		OrderKind: signal.OrderLimit,
		Entries:   []float64{64000},
		Leverage:  5,
		StopLoss:  62000,
		TakeProfits: []signal.TakeProfit{
			{Price: 65000, Fraction: 0.5},
			{Price: 66000, Fraction: 0.5},
		},
	}
}

func assertReason(t *testing.T, err error, want Reason) {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Reason != want {
		t.Errorf("reason: got %s want %s", verr.Reason, want)
	}
}

func TestValidate_AcceptsWellFormedIntent(t *testing.T) {
	v := NewValidator(testTradingConfig(), nil)
	if err := v.Validate(makeLongIntent()); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestValidate_SymbolAllowList(t *testing.T) {
	cfg := testTradingConfig()
	cfg.AllowedSymbols = []string{"eth", "sol"}
	v := NewValidator(cfg, nil)

	assertReason(t, v.Validate(makeLongIntent()), ReasonUnknownSymbol)

	intent := makeLongIntent()
	intent.Symbol = "ETH"
	if err := v.Validate(intent); err != nil {
		t.Errorf("allow-listed symbol rejected: %v", err)
	}
}

func TestValidate_StopLossMustBeOnLossSide(t *testing.T) {
	v := NewValidator(testTradingConfig(), nil)

	long := makeLongIntent()
	long.StopLoss = 65000
	assertReason(t, v.Validate(long), ReasonInvalidStopLoss)

	short := makeLongIntent()
	short.Side = signal.SideShort
	short.StopLoss = 62000
	short.TakeProfits = nil
	assertReason(t, v.Validate(short), ReasonInvalidStopLoss)
}

func TestValidate_TakeProfitMustBeOnProfitSide(t *testing.T) {
	v := NewValidator(testTradingConfig(), nil)

	intent := makeLongIntent()
	intent.TakeProfits = []signal.TakeProfit{{Price: 63000, Fraction: 1}}
	assertReason(t, v.Validate(intent), ReasonInvalidTakeProfit)

	// 阶梯入场时止盈必须对每个入场价都成立
	ladder := makeLongIntent()
	ladder.Entries = []float64{64000, 64800}
	ladder.TakeProfits = []signal.TakeProfit{{Price: 64500, Fraction: 1}}
	assertReason(t, v.Validate(ladder), ReasonInvalidTakeProfit)
}

func TestValidate_LeverageClampMutatesIntent(t *testing.T) {
	v := NewValidator(testTradingConfig(), nil)

	intent := makeLongIntent()
	intent.Leverage = 50
	if err := v.Validate(intent); err != nil {
		t.Fatalf("clamp policy should not reject: %v", err)
	}
	if intent.Leverage != 20 {
		t.Errorf("expected leverage clamped to 20, got %v", intent.Leverage)
	}
}

func TestValidate_LeverageRejectPolicy(t *testing.T) {
	cfg := testTradingConfig()
	cfg.LeveragePolicy = config.LeveragePolicyReject
	v := NewValidator(cfg, nil)

	intent := makeLongIntent()
	intent.Leverage = 50
	assertReason(t, v.Validate(intent), ReasonLeverageExceeded)
}

func TestValidate_FractionsMustSumToOne(t *testing.T) {
	v := NewValidator(testTradingConfig(), nil)

	intent := makeLongIntent()
	intent.TakeProfits = []signal.TakeProfit{
		{Price: 65000, Fraction: 0.5},
		{Price: 66000, Fraction: 0.6},
	}
	assertReason(t, v.Validate(intent), ReasonBadFractions)

	zero := makeLongIntent()
	zero.TakeProfits = []signal.TakeProfit{{Price: 65000, Fraction: 0}}
	assertReason(t, v.Validate(zero), ReasonBadFractions)
}
