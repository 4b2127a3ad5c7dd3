package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Source   SourceConfig   `mapstructure:"source"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Exchange ExchangeConfig `mapstructure:"exchange"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// SourceConfig 限定允许触发信号的消息来源。
// 两个列表均为白名单，留空表示不限制。
type SourceConfig struct {
	ChannelIDs []string `mapstructure:"channel_ids"`
	AuthorIDs  []string `mapstructure:"author_ids"`
}

// TradingConfig 控制信号执行策略与仓位参数。
type TradingConfig struct {
	AutoExecute        bool          `mapstructure:"auto_execute"`
	Simulation         bool          `mapstructure:"simulation"`
	MaxPositionSize    float64       `mapstructure:"max_position_size"`
	Leverage           float64       `mapstructure:"leverage"`
	MaxLeverage        float64       `mapstructure:"max_leverage"`
	LeveragePolicy     string        `mapstructure:"leverage_policy"`
	TPFractions        string        `mapstructure:"tp_fractions"`
	StopLossPercentage float64       `mapstructure:"stop_loss_percentage"`
	ConfirmTTL         time.Duration `mapstructure:"confirm_ttl"`
	AllowedSymbols     []string      `mapstructure:"allowed_symbols"`
}

// ExchangeConfig 描述执行端交易所配置。
type ExchangeConfig struct {
	Name       string      `mapstructure:"name"`
	APIKey     string      `mapstructure:"api_key"`
	APISecret  string      `mapstructure:"api_secret"`
	APIPass    string      `mapstructure:"api_password"`
	UseSandbox bool        `mapstructure:"use_sandbox"`
	Wallet     string      `mapstructure:"wallet_address"`
	PrivateKey string      `mapstructure:"private_key"`
	Retry      RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// FeedConfig 控制行情轮询。
type FeedConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MarketSuffix string        `mapstructure:"market_suffix"`
}

// ServerConfig 控制命令接口。
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

const (
	// LeveragePolicyClamp 杠杆超限时压到上限继续执行。
	LeveragePolicyClamp = "clamp"
	// LeveragePolicyReject 杠杆超限时直接拒绝该意图。
	LeveragePolicyReject = "reject"
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Trading.MaxPositionSize <= 0 || c.Trading.MaxPositionSize > 1 {
		err = multierr.Append(err, errors.New("trading.max_position_size 必须位于(0,1]"))
	}
	if c.Trading.Leverage <= 0 {
		err = multierr.Append(err, errors.New("trading.leverage 必须大于0"))
	}
	if c.Trading.MaxLeverage <= 0 {
		err = multierr.Append(err, errors.New("trading.max_leverage 必须大于0"))
	}
	if c.Trading.Leverage > c.Trading.MaxLeverage {
		err = multierr.Append(err, errors.New("trading.leverage 不能大于 max_leverage"))
	}
	switch strings.ToLower(c.Trading.LeveragePolicy) {
	case LeveragePolicyClamp, LeveragePolicyReject:
	default:
		err = multierr.Append(err, errors.New("trading.leverage_policy 必须为 clamp 或 reject"))
	}
	if c.Trading.StopLossPercentage < 0 || c.Trading.StopLossPercentage >= 1 {
		err = multierr.Append(err, errors.New("trading.stop_loss_percentage 必须位于[0,1)"))
	}
	if c.Trading.ConfirmTTL <= 0 {
		err = multierr.Append(err, errors.New("trading.confirm_ttl 必须大于0"))
	}
	if c.Exchange.Name == "" {
		err = multierr.Append(err, errors.New("exchange.name 不能为空"))
	}
	if c.Exchange.Retry.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.max_attempts 必须大于0"))
	}
	if c.Exchange.Retry.MinDelay <= 0 || c.Exchange.Retry.MaxDelay <= 0 {
		err = multierr.Append(err, errors.New("exchange.retry.delay 必须为正"))
	}
	if c.Exchange.Retry.MinDelay > c.Exchange.Retry.MaxDelay {
		err = multierr.Append(err, errors.New("exchange.retry.min_delay 不能大于 max_delay"))
	}
	if !c.Trading.Simulation && strings.EqualFold(c.Exchange.Name, "hyperliquid") {
		if c.Exchange.Wallet == "" || c.Exchange.PrivateKey == "" {
			err = multierr.Append(err, errors.New("hyperliquid 交易需要配置 wallet_address 与 private_key"))
		}
	}
	if c.Feed.PollInterval <= 0 {
		err = multierr.Append(err, errors.New("feed.poll_interval 必须大于0"))
	}
	if c.Feed.MarketSuffix == "" {
		err = multierr.Append(err, errors.New("feed.market_suffix 不能为空"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, errors.New("server.port 必须位于[1,65535]"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}
