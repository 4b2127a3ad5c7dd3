package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"copy-trader/internal/signal"
)

// SimulatedExecutor 只记录日志不触达交易所，用于模拟模式与本地联调。
type SimulatedExecutor struct {
	logger *zap.Logger
}

// NewSimulatedExecutor 创建模拟执行器。
func NewSimulatedExecutor(logger *zap.Logger) *SimulatedExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulatedExecutor{logger: logger}
}

// PlaceEntry 记录一笔模拟开仓。
func (s *SimulatedExecutor) PlaceEntry(_ context.Context, order EntryOrder) error {
	if order.Amount <= 0 {
		return fmt.Errorf("execution: 开仓手数无效 amount=%.8f", order.Amount)
	}
	if order.Kind == signal.OrderLimit && order.Price <= 0 {
		return fmt.Errorf("execution: 限价单缺少价格")
	}

	s.logger.Info("[模拟] 开仓委托",
		zap.String("market", order.Market),
		zap.String("side", string(entrySide(order.Side))),
		zap.String("kind", string(order.Kind)),
		zap.Float64("amount", order.Amount),
		zap.Float64("price", order.Price),
		zap.Float64("leverage", order.Leverage),
	)
	return nil
}

// ClosePosition 记录一笔模拟平仓。
func (s *SimulatedExecutor) ClosePosition(_ context.Context, order CloseOrder) error {
	if order.Amount <= 0 {
		return fmt.Errorf("execution: 平仓手数无效 amount=%.8f", order.Amount)
	}

	s.logger.Info("[模拟] 平仓委托",
		zap.String("market", order.Market),
		zap.String("side", string(closeSide(order.Side))),
		zap.Float64("amount", order.Amount),
		zap.String("reason", string(order.Reason)),
	)
	return nil
}
