package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"copy-trader/internal/config"
	"copy-trader/internal/store"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
}

// New 创建 App 实例。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store) *App {
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
	}
}

// Run 启动主循环、行情轮询与命令接口，阻塞直至退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("跟单系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("exchange", a.cfg.Exchange.Name),
		zap.Bool("simulation", a.cfg.Trading.Simulation),
		zap.Bool("auto_execute", a.cfg.Trading.AutoExecute),
	)

	orch, err := newOrchestrator(a.cfg, a.logger, a.store)
	if err != nil {
		return err
	}

	if err := startCommandServer(ctx, orch, a.cfg.Server.Port, a.logger); err != nil {
		return fmt.Errorf("启动命令接口失败: %w", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return orch.loop(groupCtx)
	})
	group.Go(func() error {
		return orch.feed.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}

	a.logger.Info("系统收到退出信号，正在停止")
	return nil
}
