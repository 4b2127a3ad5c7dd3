package execution

import (
	"context"
	"fmt"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"copy-trader/internal/exchange"
	"copy-trader/internal/signal"
)

type orderClient interface {
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
}

// Executor 将开仓与平仓指令转化为交易所委托。
type Executor struct {
	client   orderClient
	logger   *zap.Logger
	maxRetry int
}

// NewExecutor 创建真实下单执行器。
func NewExecutor(client orderClient, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		client:   client,
		logger:   logger,
		maxRetry: 3,
	}
}

// PlaceEntry 按意图提交开仓委托。
func (e *Executor) PlaceEntry(ctx context.Context, order EntryOrder) error {
	if order.Amount <= 0 {
		return fmt.Errorf("execution: 开仓手数无效 amount=%.8f", order.Amount)
	}
	if order.Kind == signal.OrderLimit && order.Price <= 0 {
		return fmt.Errorf("execution: 限价单缺少价格")
	}

	params := map[string]interface{}{}
	if order.Leverage > 0 {
		params["leverage"] = order.Leverage
	}

	side := string(entrySide(order.Side))

	err := e.submit(ctx, fmt.Sprintf("entry_%s", order.Market), func() error {
		switch order.Kind {
		case signal.OrderLimit:
			var opts []ccxt.CreateLimitOrderOptions
			if len(params) > 0 {
				opts = append(opts, ccxt.WithCreateLimitOrderParams(params))
			}
			_, err := e.client.CreateLimitOrder(order.Market, side, order.Amount, order.Price, opts...)
			return err
		default:
			var opts []ccxt.CreateMarketOrderOptions
			if len(params) > 0 {
				opts = append(opts, ccxt.WithCreateMarketOrderParams(params))
			}
			_, err := e.client.CreateMarketOrder(order.Market, side, order.Amount, opts...)
			return err
		}
	})
	if err != nil {
		return fmt.Errorf("execution: 开仓失败: %w", err)
	}

	e.logger.Info("开仓委托已提交",
		zap.String("market", order.Market),
		zap.String("side", side),
		zap.String("kind", string(order.Kind)),
		zap.Float64("amount", order.Amount),
	)
	return nil
}

// ClosePosition 以市价单平掉指定数量，始终带 reduceOnly 防止反向开仓。
func (e *Executor) ClosePosition(ctx context.Context, order CloseOrder) error {
	if order.Amount <= 0 {
		return fmt.Errorf("execution: 平仓手数无效 amount=%.8f", order.Amount)
	}

	params := map[string]interface{}{
		"reduceOnly": true,
	}
	side := string(closeSide(order.Side))

	err := e.submit(ctx, fmt.Sprintf("close_%s", order.Market), func() error {
		_, err := e.client.CreateMarketOrder(order.Market, side, order.Amount,
			ccxt.WithCreateMarketOrderParams(params))
		return err
	})
	if err != nil {
		return fmt.Errorf("execution: 平仓失败: %w", err)
	}

	e.logger.Info("平仓委托已提交",
		zap.String("market", order.Market),
		zap.String("side", side),
		zap.Float64("amount", order.Amount),
		zap.String("reason", string(order.Reason)),
	)
	return nil
}

func (e *Executor) submit(ctx context.Context, label string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxRetry; attempt++ {
		if err = fn(); err == nil {
			return nil
		}

		if !exchange.IsRetryable(err) {
			return err
		}

		wait := time.Duration(attempt) * time.Second
		e.logger.Warn("下单失败，准备重试",
			zap.String("op", label),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("重试后仍下单失败: %w", err)
}
