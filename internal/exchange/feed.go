package exchange

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copy-trader/internal/config"
)

// PriceTick 为一次行情更新。
type PriceTick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// priceSource 抽象行情来源，便于在测试中替换真实客户端。
type priceSource interface {
	FetchLastPrice(ctx context.Context, market string) (float64, error)
}

// Feed 周期性轮询在管标的的最新价格，推送给监控方。
// 监控核心只消费价格，不关心行情的来源与节奏。
type Feed struct {
	source    priceSource
	cfg       config.FeedConfig
	symbolsFn func() []string
	logger    *zap.Logger
	out       chan PriceTick
}

// NewFeed 创建行情轮询器。symbolsFn 在每轮轮询时给出需要跟踪的标的。
func NewFeed(source priceSource, cfg config.FeedConfig, symbolsFn func() []string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Feed{
		source:    source,
		cfg:       cfg,
		symbolsFn: symbolsFn,
		logger:    logger,
		out:       make(chan PriceTick, 64),
	}
}

// Ticks 返回行情通道。
func (f *Feed) Ticks() <-chan PriceTick {
	return f.out
}

// Run 启动轮询，直至 ctx 取消。单个标的拉取失败只记日志，不影响其余标的。
func (f *Feed) Run(ctx context.Context) error {
	interval := f.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			f.poll(ctx)
		}
	}
}

func (f *Feed) poll(ctx context.Context) {
	symbols := f.symbolsFn()
	if len(symbols) == 0 {
		return
	}

	var mu sync.Mutex
	ticks := make([]PriceTick, 0, len(symbols))

	group, groupCtx := errgroup.WithContext(ctx)
	for _, symbol := range symbols {
		group.Go(func() error {
			market := symbol + f.cfg.MarketSuffix
			price, err := f.source.FetchLastPrice(groupCtx, market)
			if err != nil {
				f.logger.Warn("拉取行情失败", zap.String("symbol", symbol), zap.Error(err))
				return nil
			}
			mu.Lock()
			ticks = append(ticks, PriceTick{Symbol: symbol, Price: price, Timestamp: time.Now().UTC()})
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	for _, tick := range ticks {
		select {
		case <-ctx.Done():
			return
		case f.out <- tick:
		}
	}
}
