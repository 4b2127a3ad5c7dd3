package risk

import (
	"math"
	"strings"

	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/signal"
)

// Validator 在意图进入确认流程前做最终把关。
// 通过校验的意图自此视为不可变。
type Validator struct {
	cfg     config.TradingConfig
	allowed map[string]bool
	logger  *zap.Logger
}

// NewValidator 创建意图校验器。allowed_symbols 留空表示不限制标的。
func NewValidator(cfg config.TradingConfig, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(cfg.AllowedSymbols))
	for _, s := range cfg.AllowedSymbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			allowed[s] = true
		}
	}
	return &Validator{cfg: cfg, allowed: allowed, logger: logger}
}

// Validate 按固定顺序检查意图：标的白名单、止损方向、止盈方向、
// 杠杆上限（按策略压限或拒绝）、止盈比例归一。
// 校验失败返回 *ValidationError；杠杆压限会直接修改意图。
func (v *Validator) Validate(intent *signal.Intent) error {
	if len(v.allowed) > 0 && !v.allowed[intent.Symbol] {
		return &ValidationError{Reason: ReasonUnknownSymbol, Symbol: intent.Symbol}
	}

	if intent.StopLoss > 0 {
		for _, entry := range intent.Entries {
			if !onLossSide(intent.Side, entry, intent.StopLoss) {
				return &ValidationError{Reason: ReasonInvalidStopLoss, Symbol: intent.Symbol}
			}
		}
	}

	for _, tp := range intent.TakeProfits {
		for _, entry := range intent.Entries {
			if !onProfitSide(intent.Side, entry, tp.Price) {
				return &ValidationError{Reason: ReasonInvalidTakeProfit, Symbol: intent.Symbol}
			}
		}
	}

	if intent.Leverage > v.cfg.MaxLeverage {
		if strings.ToLower(v.cfg.LeveragePolicy) == config.LeveragePolicyReject {
			return &ValidationError{Reason: ReasonLeverageExceeded, Symbol: intent.Symbol}
		}
		v.logger.Warn("杠杆超限，压到上限执行",
			zap.String("symbol", intent.Symbol),
			zap.Float64("requested", intent.Leverage),
			zap.Float64("max", v.cfg.MaxLeverage),
		)
		intent.Leverage = v.cfg.MaxLeverage
	}

	if len(intent.TakeProfits) > 0 {
		var sum float64
		for _, tp := range intent.TakeProfits {
			if tp.Fraction <= 0 || tp.Fraction > 1 {
				return &ValidationError{Reason: ReasonBadFractions, Symbol: intent.Symbol}
			}
			sum += tp.Fraction
		}
		if math.Abs(sum-1) > signal.FractionSumEpsilon {
			return &ValidationError{Reason: ReasonBadFractions, Symbol: intent.Symbol}
		}
	}

	return nil
}

// onLossSide 判断止损价是否位于入场价的亏损侧。
func onLossSide(side signal.Side, entry, stop float64) bool {
	if side == signal.SideLong {
		return stop < entry
	}
	return stop > entry
}

// onProfitSide 判断止盈价是否位于入场价的盈利侧。
func onProfitSide(side signal.Side, entry, target float64) bool {
	if side == signal.SideLong {
		return target > entry
	}
	return target < entry
}
