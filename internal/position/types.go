package position

import (
	"time"

	"copy-trader/internal/signal"
)

// Status 表示持仓状态。
type Status string

const (
	StatusOpen            Status = "OPEN"
	StatusPartiallyClosed Status = "PARTIALLY_CLOSED"
	StatusClosed          Status = "CLOSED"
)

// Level 为持仓上的单个止盈档位，至多触发一次。
type Level struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
	Fired    bool    `json:"fired"`
}

// Position 为已执行意图派生出的实时持仓。
// OriginalSize 在开仓时固定，是所有止盈比例换算的基准；
// RemainingSize 随每次平仓单调递减，归零即终态。
type Position struct {
	ID            string      `json:"id"`
	Symbol        string      `json:"symbol"`
	Side          signal.Side `json:"side"`
	Leverage      float64     `json:"leverage"`
	EntryPrice    float64     `json:"entry_price"`
	Entries       []float64   `json:"entries,omitempty"`
	OriginalSize  float64     `json:"original_size"`
	RemainingSize float64     `json:"remaining_size"`
	StopLoss      float64     `json:"stop_loss,omitempty"`
	TakeProfits   []Level     `json:"take_profits,omitempty"`
	Status        Status      `json:"status"`
	Frozen        bool        `json:"frozen"`
	OpenedAt      time.Time   `json:"opened_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// CloseReason 标识平仓动作的触发来源。
type CloseReason string

const (
	CloseStopLoss   CloseReason = "STOP_LOSS"
	CloseTakeProfit CloseReason = "TAKE_PROFIT"
	CloseManual     CloseReason = "MANUAL"
)

// CloseAction 为监控器对单次价格更新做出的平仓指令。
// 动作一经发出即已计入仓位，执行失败由调用方重试，监控器不会重发，
// 以避免仓位被重复扣减。
type CloseAction struct {
	PositionID string      `json:"position_id"`
	Symbol     string      `json:"symbol"`
	Side       signal.Side `json:"side"`
	Size       float64     `json:"size"`
	Price      float64     `json:"price"`
	Reason     CloseReason `json:"reason"`
	// LevelIndex 为触发的止盈档位序号；止损与手动平仓为 -1。
	LevelIndex int `json:"level_index"`
}
