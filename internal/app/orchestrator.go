package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/config"
	"copy-trader/internal/confirm"
	"copy-trader/internal/exchange"
	"copy-trader/internal/execution"
	"copy-trader/internal/journal"
	"copy-trader/internal/position"
	"copy-trader/internal/risk"
	"copy-trader/internal/signal"
	"copy-trader/internal/source"
	"copy-trader/internal/store"
)

// 待确认意图的过期检查周期。
const expireSweepInterval = 30 * time.Second

// marketClient 抽象行情与账户读取，便于在测试中替换真实交易所。
type marketClient interface {
	FetchLastPrice(ctx context.Context, market string) (float64, error)
	FetchEquity(ctx context.Context) (float64, error)
}

// orchestrator 串联消息过滤、解析、校验、确认、执行与仓位监控。
// 所有改变仓位的路径都汇聚到 loop 单协程内，行情与审批事件天然有序。
type orchestrator struct {
	cfg       *config.Config
	logger    *zap.Logger
	filter    *source.Filter
	parser    *signal.Parser
	validator *risk.Validator
	workflow  *confirm.Workflow
	book      *position.Book
	gateway   execution.Gateway
	market    marketClient
	journal   *journal.Service
	feed      *exchange.Feed

	messages  chan source.Message
	approvals chan confirm.Approval
}

func newOrchestrator(cfg *config.Config, logger *zap.Logger, store *store.Store) (*orchestrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	journalSvc, err := journal.NewService(store, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化事件流水失败: %w", err)
	}

	client, err := exchange.NewClient(cfg.Exchange, logger)
	if err != nil {
		return nil, fmt.Errorf("初始化交易所客户端失败: %w", err)
	}

	var gateway execution.Gateway
	if cfg.Trading.Simulation {
		logger.Info("执行器处于模拟模式")
		gateway = execution.NewSimulatedExecutor(logger)
	} else {
		gateway = execution.NewExecutor(client, logger)
	}

	parser := signal.NewParser(signal.Options{
		DefaultLeverage: cfg.Trading.Leverage,
		TPFractions:     cfg.Trading.TPFractions,
	})

	book := position.NewBook(logger)
	feed := exchange.NewFeed(client, cfg.Feed, book.Symbols, logger)

	return &orchestrator{
		cfg:       cfg,
		logger:    logger,
		filter:    source.NewFilter(cfg.Source),
		parser:    parser,
		validator: risk.NewValidator(cfg.Trading, logger),
		workflow:  confirm.NewWorkflow(cfg.Trading.AutoExecute, cfg.Trading.ConfirmTTL, logger),
		book:      book,
		gateway:   gateway,
		market:    client,
		journal:   journalSvc,
		feed:      feed,
		messages:  make(chan source.Message, 64),
		approvals: make(chan confirm.Approval, 64),
	}, nil
}

// loop 为系统唯一的状态写入者。
func (o *orchestrator) loop(ctx context.Context) error {
	sweep := time.NewTicker(expireSweepInterval)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-o.messages:
			o.handleMessage(ctx, msg)
		case approval := <-o.approvals:
			o.handleApproval(ctx, approval)
		case tick := <-o.feed.Ticks():
			o.handleTick(ctx, tick)
		case <-sweep.C:
			o.sweepExpired(ctx)
		}
	}
}

// EnqueueMessage 将来源消息投递给主循环，队列满时直接丢弃并报错。
func (o *orchestrator) EnqueueMessage(msg source.Message) error {
	select {
	case o.messages <- msg:
		return nil
	default:
		return errors.New("app: 消息队列已满")
	}
}

// EnqueueApproval 将审批事件投递给主循环。
func (o *orchestrator) EnqueueApproval(a confirm.Approval) error {
	select {
	case o.approvals <- a:
		return nil
	default:
		return errors.New("app: 审批队列已满")
	}
}

func (o *orchestrator) handleMessage(ctx context.Context, msg source.Message) {
	if !o.filter.Allow(msg) {
		return
	}

	intent, err := o.parser.Parse(msg.Text, msg.Timestamp)
	if err != nil {
		if signal.IsNoSignal(err) {
			return
		}
		// 命中交易动词但无法还原完整意图，记录以便回看原文。
		o.logger.Warn("信号解析失败", zap.Error(err))
		o.journal.RecordError(ctx, "信号解析失败", err, map[string]interface{}{
			"channel": msg.ChannelID,
			"author":  msg.AuthorID,
		})
		return
	}

	if err := o.validator.Validate(intent); err != nil {
		o.logger.Warn("意图未通过风控",
			zap.String("symbol", intent.Symbol),
			zap.Error(err),
		)
		o.journal.RecordRejection(ctx, *intent, err.Error())
		return
	}

	pending, confirmed, err := o.workflow.Submit(intent)
	if err != nil {
		if errors.Is(err, confirm.ErrDuplicateSignal) {
			o.logger.Info("重复信号已拦截", zap.String("symbol", intent.Symbol))
			return
		}
		o.journal.RecordError(ctx, "登记确认流程失败", err, nil)
		return
	}

	o.journal.RecordSignal(ctx, pending.ID, *intent)
	o.journal.RecordConfirmation(ctx, pending.ID, string(pending.State), confirmed)

	if confirmed {
		o.openPosition(ctx, pending)
		return
	}

	o.logger.Info("信号等待人工确认",
		zap.String("intent_id", pending.ID),
		zap.String("symbol", intent.Symbol),
		zap.Time("expires_at", pending.ExpiresAt),
	)
}

func (o *orchestrator) handleApproval(ctx context.Context, a confirm.Approval) {
	pending, err := o.workflow.Resolve(a.IntentID, a.Approve)
	if err != nil {
		switch {
		case errors.Is(err, confirm.ErrUnknownIntent):
			o.logger.Warn("审批目标不存在", zap.String("intent_id", a.IntentID))
		case errors.Is(err, confirm.ErrAlreadyResolved), errors.Is(err, confirm.ErrDuplicateSignal):
			o.logger.Info("重复审批已忽略", zap.String("intent_id", a.IntentID))
		default:
			o.journal.RecordError(ctx, "处理审批失败", err, map[string]interface{}{"intent_id": a.IntentID})
		}
		return
	}

	o.journal.RecordConfirmation(ctx, pending.ID, string(pending.State), false)

	if pending.State != confirm.StateConfirmed {
		o.logger.Info("信号已被拒绝", zap.String("intent_id", pending.ID))
		return
	}

	o.openPosition(ctx, pending)
}

// openPosition 对已确认的意图执行开仓并登记仓位。
func (o *orchestrator) openPosition(ctx context.Context, pending *confirm.Pending) {
	intent := pending.Intent
	market := intent.Symbol + o.cfg.Feed.MarketSuffix

	entryPrice := intent.WeightedEntry()
	if entryPrice <= 0 {
		price, err := o.market.FetchLastPrice(ctx, market)
		if err != nil {
			o.journal.RecordError(ctx, "获取入场价格失败", err, map[string]interface{}{"symbol": intent.Symbol})
			return
		}
		entryPrice = price
	}

	equity, err := o.market.FetchEquity(ctx)
	if err != nil {
		o.journal.RecordError(ctx, "获取账户净值失败", err, map[string]interface{}{"symbol": intent.Symbol})
		return
	}

	size := equity * o.cfg.Trading.MaxPositionSize * intent.Leverage / entryPrice
	if size <= 0 {
		o.journal.RecordError(ctx, "计算开仓手数失败",
			fmt.Errorf("size=%.8f equity=%.2f price=%.4f", size, equity, entryPrice), nil)
		return
	}

	// 信号未给出止损时按配置比例兜底，避免裸奔仓位。
	if intent.StopLoss == 0 && o.cfg.Trading.StopLossPercentage > 0 {
		if intent.Side == signal.SideLong {
			intent.StopLoss = entryPrice * (1 - o.cfg.Trading.StopLossPercentage)
		} else {
			intent.StopLoss = entryPrice * (1 + o.cfg.Trading.StopLossPercentage)
		}
	}

	order := execution.EntryOrder{
		Market:   market,
		Side:     intent.Side,
		Kind:     intent.OrderKind,
		Amount:   size,
		Price:    intent.WeightedEntry(),
		Leverage: intent.Leverage,
	}
	if err := o.gateway.PlaceEntry(ctx, order); err != nil {
		o.logger.Error("开仓执行失败", zap.String("symbol", intent.Symbol), zap.Error(err))
		o.journal.RecordError(ctx, "开仓执行失败", err, map[string]interface{}{"intent_id": pending.ID})
		return
	}

	pos, err := o.book.Open(intent, size, entryPrice, time.Now().UTC())
	if err != nil {
		o.logger.Error("登记仓位失败", zap.String("symbol", intent.Symbol), zap.Error(err))
		o.journal.RecordError(ctx, "登记仓位失败", err, map[string]interface{}{"intent_id": pending.ID})
		return
	}

	o.logger.Info("仓位已开立",
		zap.String("position", pos.ID),
		zap.String("symbol", pos.Symbol),
		zap.String("side", string(pos.Side)),
		zap.Float64("size", pos.OriginalSize),
		zap.Float64("entry", pos.EntryPrice),
	)
	o.journal.RecordExecution(ctx, pending.ID, pos)
}

// handleTick 把一次价格更新交给仓位簿评估，并执行由此产生的平仓动作。
// 动作一经产生即已计入仓位，执行失败只重试不重新生成。
func (o *orchestrator) handleTick(ctx context.Context, tick exchange.PriceTick) {
	actions := o.book.OnPriceUpdate(tick.Symbol, tick.Price)
	for _, action := range actions {
		o.executeClose(ctx, action)
	}
}

func (o *orchestrator) executeClose(ctx context.Context, action position.CloseAction) {
	order := execution.CloseOrder{
		Market: action.Symbol + o.cfg.Feed.MarketSuffix,
		Side:   action.Side,
		Amount: action.Size,
		Reason: action.Reason,
	}

	if err := o.gateway.ClosePosition(ctx, order); err != nil {
		o.logger.Error("平仓执行失败",
			zap.String("position", action.PositionID),
			zap.String("reason", string(action.Reason)),
			zap.Error(err),
		)
		o.journal.RecordError(ctx, "平仓执行失败", err, map[string]interface{}{
			"position": action.PositionID,
			"size":     action.Size,
		})
		return
	}

	status := position.StatusPartiallyClosed
	if pos, ok := o.book.Get(action.Symbol); ok {
		status = pos.Status
	} else {
		status = position.StatusClosed
	}

	o.logger.Info("仓位已部分或全部平掉",
		zap.String("position", action.PositionID),
		zap.String("reason", string(action.Reason)),
		zap.Int("level_index", action.LevelIndex),
		zap.Float64("size", action.Size),
		zap.Float64("price", action.Price),
	)
	o.journal.RecordClose(ctx, action, status)
}

func (o *orchestrator) sweepExpired(ctx context.Context) {
	expired := o.workflow.Expire(time.Now().UTC())
	for _, p := range expired {
		o.logger.Info("待确认信号已过期",
			zap.String("intent_id", p.ID),
			zap.String("symbol", p.Intent.Symbol),
		)
		o.journal.RecordConfirmation(ctx, p.ID, string(p.State), false)
	}
}

// ManualClose 手动平掉部分或全部仓位，size<=0 表示全平。
// price<=0 时取最新行情作为记账价格。
func (o *orchestrator) ManualClose(ctx context.Context, symbol string, size, price float64) (position.CloseAction, error) {
	if price <= 0 {
		market := symbol + o.cfg.Feed.MarketSuffix
		last, err := o.market.FetchLastPrice(ctx, market)
		if err != nil {
			return position.CloseAction{}, fmt.Errorf("获取行情失败: %w", err)
		}
		price = last
	}

	action, err := o.book.CloseManual(symbol, size, price)
	if err != nil {
		return position.CloseAction{}, err
	}

	o.executeClose(ctx, action)
	return action, nil
}

// SetStopLoss 显式移动止损位。
func (o *orchestrator) SetStopLoss(symbol string, stop float64) error {
	return o.book.SetStopLoss(symbol, stop)
}

// ToggleAuto 切换自动执行开关。
func (o *orchestrator) ToggleAuto() bool {
	return o.workflow.ToggleAuto()
}

// Positions 返回在管仓位快照。
func (o *orchestrator) Positions() []position.Position {
	return o.book.List()
}

// Awaiting 返回待确认意图快照。
func (o *orchestrator) Awaiting() []confirm.Pending {
	return o.workflow.Awaiting()
}

// Journal 返回事件流水服务。
func (o *orchestrator) Journal() *journal.Service {
	return o.journal
}
