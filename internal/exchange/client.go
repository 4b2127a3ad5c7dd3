package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"copy-trader/internal/config"
)

// venueClient 抽象 ccxt 各交易所客户端共有的能力。
type venueClient interface {
	FetchTicker(symbol string, options ...ccxt.FetchTickerOptions) (ccxt.Ticker, error)
	FetchBalance(params ...interface{}) (ccxt.Balances, error)
	CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error)
	CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error)
	SetSandboxMode(enable bool)
}

// Client 封装交易所连接并实现统一重试。
type Client struct {
	cfg    config.ExchangeConfig
	logger *zap.Logger
	venue  venueClient
}

// NewClient 按配置构造交易所客户端。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}
	if cfg.APIKey != "" {
		userConfig["apiKey"] = cfg.APIKey
	}
	if cfg.APISecret != "" {
		userConfig["secret"] = cfg.APISecret
	}
	if cfg.APIPass != "" {
		userConfig["password"] = cfg.APIPass
	}
	if cfg.Wallet != "" {
		userConfig["walletAddress"] = cfg.Wallet
	}
	if cfg.PrivateKey != "" {
		userConfig["privateKey"] = cfg.PrivateKey
	}

	var venue venueClient
	switch strings.ToLower(cfg.Name) {
	case "hyperliquid":
		ex := ccxt.NewHyperliquid(userConfig)
		venue = ex
	case "binanceusdm":
		ex := ccxt.NewBinanceusdm(userConfig)
		venue = ex
	default:
		return nil, fmt.Errorf("exchange: 不支持的交易所 %q", cfg.Name)
	}

	if cfg.UseSandbox {
		venue.SetSandboxMode(true)
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		venue:  venue,
	}, nil
}

// FetchLastPrice 获取指定市场的最新成交价。
func (c *Client) FetchLastPrice(ctx context.Context, market string) (float64, error) {
	var price float64

	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ticker_%s", market), func() error {
		ticker, err := c.venue.FetchTicker(market)
		if err != nil {
			return err
		}
		price = firstPositive(
			derefFloat(ticker.Last),
			derefFloat(ticker.Close),
			derefFloat(ticker.Bid),
			derefFloat(ticker.Ask),
		)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: 获取 %s 行情失败: %w", market, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("exchange: %s 行情缺少有效价格", market)
	}

	return price, nil
}

// FetchEquity 获取账户净值（USD 口径）。
func (c *Client) FetchEquity(ctx context.Context) (float64, error) {
	var equity float64

	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		balances, err := c.venue.FetchBalance()
		if err != nil {
			return err
		}
		equity = extractEquity(balances)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("exchange: 获取账户余额失败: %w", err)
	}
	if equity <= 0 {
		return 0, fmt.Errorf("exchange: 账户净值无效 equity=%.4f", equity)
	}

	return equity, nil
}

// CreateMarketOrder 透传市价单，重试由上层执行器控制。
func (c *Client) CreateMarketOrder(symbol string, side string, amount float64, options ...ccxt.CreateMarketOrderOptions) (ccxt.Order, error) {
	return c.venue.CreateMarketOrder(symbol, side, amount, options...)
}

// CreateLimitOrder 透传限价单。
func (c *Client) CreateLimitOrder(symbol string, side string, amount float64, price float64, options ...ccxt.CreateLimitOrderOptions) (ccxt.Order, error) {
	return c.venue.CreateLimitOrder(symbol, side, amount, price, options...)
}

func (c *Client) callWithRetry(ctx context.Context, label string, fn func() error) error {
	retry := c.cfg.Retry
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}

	var err error
	delay := retry.MinDelay

	for attempt := 1; attempt <= retry.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !IsRetryable(err) || attempt == retry.MaxAttempts {
			return err
		}

		c.logger.Warn("交易所请求失败，准备重试",
			zap.String("op", label),
			zap.Int("attempt", attempt),
			zap.Duration("wait", delay),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if retry.MaxDelay > 0 && delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}
	}

	return err
}

// extractEquity 依次尝试主流计价货币的总余额。
func extractEquity(balances ccxt.Balances) float64 {
	if balances.Total != nil {
		for _, code := range []string{"USDC", "USD", "USDT"} {
			if total, ok := balances.Total[code]; ok && total != nil && *total > 0 {
				return *total
			}
		}
		for _, v := range balances.Total {
			if v != nil && *v > 0 {
				return *v
			}
		}
	}
	return 0
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func firstPositive(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
