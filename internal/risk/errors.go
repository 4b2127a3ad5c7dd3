package risk

import "fmt"

// Reason 标识意图被拒绝的原因。
type Reason string

const (
	ReasonUnknownSymbol     Reason = "UnknownSymbol"
	ReasonInvalidStopLoss   Reason = "InvalidStopLoss"
	ReasonInvalidTakeProfit Reason = "InvalidTakeProfit"
	ReasonLeverageExceeded  Reason = "LeverageExceeded"
	ReasonBadFractions      Reason = "BadFractions"
)

// ValidationError 表示意图未通过校验；意图被丢弃，流程不受影响。
type ValidationError struct {
	Reason Reason
	Symbol string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("risk: 意图校验失败(%s): %s", e.Reason, e.Symbol)
}
