package execution

import (
	"copy-trader/internal/position"
	"copy-trader/internal/signal"
)

// OrderSide 表示下单方向。
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// EntryOrder 描述一次开仓委托。
// Market 为交易所侧的完整市场代码（含计价后缀），由上层拼装。
type EntryOrder struct {
	Market   string
	Side     signal.Side
	Kind     signal.OrderKind
	Amount   float64
	Price    float64
	Leverage float64
}

// CloseOrder 描述一次平仓委托，方向在提交时取持仓方向的反向。
type CloseOrder struct {
	Market string
	Side   signal.Side
	Amount float64
	Reason position.CloseReason
}

// entrySide 将持仓方向换算为开仓委托方向。
func entrySide(side signal.Side) OrderSide {
	if side == signal.SideLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// closeSide 将持仓方向换算为平仓委托方向。
func closeSide(side signal.Side) OrderSide {
	if side == signal.SideLong {
		return OrderSideSell
	}
	return OrderSideBuy
}
