package signal

import "time"

// Side 表示交易方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderKind 表示委托类型。
type OrderKind string

const (
	OrderMarket OrderKind = "MARKET"
	OrderLimit  OrderKind = "LIMIT"
)

// TakeProfit 为单个止盈档位：触发价与按原始仓位计的平仓比例。
type TakeProfit struct {
	Price    float64 `json:"price"`
	Fraction float64 `json:"fraction"`
}

// Intent 为解析后的、尚未执行的交易指令。
// 通过校验后即视为不可变。
type Intent struct {
	Symbol          string       `json:"symbol"`
	Side            Side         `json:"side"`
	OrderKind       OrderKind    `json:"order_kind"`
	Entries         []float64    `json:"entries"`
	Leverage        float64      `json:"leverage"`
	StopLoss        float64      `json:"stop_loss,omitempty"`
	TakeProfits     []TakeProfit `json:"take_profits,omitempty"`
	RawText         string       `json:"raw_text"`
	SourceTimestamp time.Time    `json:"source_timestamp"`
}

// WeightedEntry 返回阶梯入场的等权均价；市价单（无入场价）返回 0。
func (i *Intent) WeightedEntry() float64 {
	if len(i.Entries) == 0 {
		return 0
	}
	var sum float64
	for _, p := range i.Entries {
		sum += p
	}
	return sum / float64(len(i.Entries))
}
