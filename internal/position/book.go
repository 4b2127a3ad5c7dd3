package position

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/signal"
)

// 仓位尺寸小于该值即视为已出清，吸收浮点残差。
const sizeEpsilon = 1e-9

var (
	// ErrPositionExists 表示该标的已有在管仓位。
	ErrPositionExists = errors.New("position: 该标的已有持仓")
	// ErrPositionNotFound 表示该标的没有在管仓位。
	ErrPositionNotFound = errors.New("position: 未找到持仓")
)

// Book 独占管理全部在管仓位。
// 价格驱动的状态变更全部经由 OnPriceUpdate 串行进行（单写者），
// 互斥锁只为命令接口的只读查询提供保护。
type Book struct {
	mu        sync.Mutex
	positions map[string]*Position
	logger    *zap.Logger
}

// NewBook 创建仓位登记簿。
func NewBook(logger *zap.Logger) *Book {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Book{
		positions: make(map[string]*Position),
		logger:    logger,
	}
}

// Open 依据已确认的意图登记新仓位。
// size 为入场时一次性计算的原始仓位，此后所有止盈换算都以它为基准。
func (b *Book) Open(intent *signal.Intent, size, entryPrice float64, now time.Time) (Position, error) {
	if size <= 0 {
		return Position{}, fmt.Errorf("position: 开仓数量无效 size=%.8f", size)
	}
	if entryPrice <= 0 {
		return Position{}, fmt.Errorf("position: 入场价格无效 price=%.8f", entryPrice)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.positions[intent.Symbol]; ok {
		return Position{}, ErrPositionExists
	}

	levels := make([]Level, 0, len(intent.TakeProfits))
	for _, tp := range intent.TakeProfits {
		levels = append(levels, Level{Price: tp.Price, Fraction: tp.Fraction})
	}

	p := &Position{
		ID:            fmt.Sprintf("%s-%d", intent.Symbol, now.UTC().UnixMilli()),
		Symbol:        intent.Symbol,
		Side:          intent.Side,
		Leverage:      intent.Leverage,
		EntryPrice:    entryPrice,
		Entries:       append([]float64(nil), intent.Entries...),
		OriginalSize:  size,
		RemainingSize: size,
		StopLoss:      intent.StopLoss,
		TakeProfits:   levels,
		Status:        StatusOpen,
		OpenedAt:      now.UTC(),
		UpdatedAt:     now.UTC(),
	}
	b.positions[intent.Symbol] = p

	return *p, nil
}

// OnPriceUpdate 以最新价格评估该标的的在管仓位，返回应执行的平仓动作。
// 止损为终态且在同一次更新内优先于任何止盈（确定性的平局规则）；
// 止盈按档位顺序扫描，价格跳空时同一次更新可触发多档。
func (b *Book) OnPriceUpdate(symbol string, price float64) []CloseAction {
	if price <= 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[symbol]
	if !ok || p.Frozen || p.Status == StatusClosed {
		return nil
	}

	now := time.Now().UTC()

	if p.StopLoss > 0 && stopHit(p.Side, price, p.StopLoss) {
		action := CloseAction{
			PositionID: p.ID,
			Symbol:     p.Symbol,
			Side:       p.Side,
			Size:       p.RemainingSize,
			Price:      price,
			Reason:     CloseStopLoss,
			LevelIndex: -1,
		}
		p.RemainingSize = 0
		p.Status = StatusClosed
		p.UpdatedAt = now
		delete(b.positions, symbol)
		return []CloseAction{action}
	}

	var actions []CloseAction
	skippedEarlier := false

	for i := range p.TakeProfits {
		lvl := &p.TakeProfits[i]
		if lvl.Fired {
			continue
		}
		if !targetHit(p.Side, price, lvl.Price) {
			skippedEarlier = true
			continue
		}
		if skippedEarlier {
			// 后档先于前档触发说明档位顺序本身有问题，冻结该仓位等待人工处理，
			// 其余仓位不受影响。
			b.logger.Error("止盈档位乱序触发，仓位已冻结",
				zap.String("position", p.ID),
				zap.Int("level_index", i),
				zap.Float64("level_price", lvl.Price),
				zap.Float64("price", price),
				zap.Any("levels", p.TakeProfits),
			)
			p.Frozen = true
			p.UpdatedAt = now
			break
		}

		closeSize := lvl.Fraction * p.OriginalSize
		if closeSize > p.RemainingSize {
			closeSize = p.RemainingSize
		}
		if closeSize <= 0 {
			lvl.Fired = true
			continue
		}

		lvl.Fired = true
		p.RemainingSize -= closeSize
		p.UpdatedAt = now
		actions = append(actions, CloseAction{
			PositionID: p.ID,
			Symbol:     p.Symbol,
			Side:       p.Side,
			Size:       closeSize,
			Price:      price,
			Reason:     CloseTakeProfit,
			LevelIndex: i,
		})

		if p.RemainingSize <= sizeEpsilon {
			p.RemainingSize = 0
			break
		}
	}

	if p.RemainingSize == 0 {
		p.Status = StatusClosed
		delete(b.positions, symbol)
	} else if len(actions) > 0 {
		p.Status = StatusPartiallyClosed
	}

	return actions
}

// CloseManual 按请求平掉部分或全部仓位。size<=0 表示全平。
// 冻结中的仓位也允许手动平仓，这是人工介入的出口。
func (b *Book) CloseManual(symbol string, size, price float64) (CloseAction, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[symbol]
	if !ok {
		return CloseAction{}, ErrPositionNotFound
	}

	if size <= 0 || size > p.RemainingSize {
		size = p.RemainingSize
	}

	now := time.Now().UTC()
	p.RemainingSize -= size
	p.UpdatedAt = now

	action := CloseAction{
		PositionID: p.ID,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Size:       size,
		Price:      price,
		Reason:     CloseManual,
		LevelIndex: -1,
	}

	if p.RemainingSize <= sizeEpsilon {
		p.RemainingSize = 0
		p.Status = StatusClosed
		delete(b.positions, symbol)
	} else {
		p.Status = StatusPartiallyClosed
	}

	return action, nil
}

// SetStopLoss 显式更新止损位；仓位默认不移动止损。
func (b *Book) SetStopLoss(symbol string, stop float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[symbol]
	if !ok {
		return ErrPositionNotFound
	}
	if stop <= 0 {
		return fmt.Errorf("position: 止损价格无效 stop=%.8f", stop)
	}

	p.StopLoss = stop
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Get 返回指定标的的仓位快照。
func (b *Book) Get(symbol string) (Position, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return snapshot(p), true
}

// List 返回全部在管仓位的快照，按标的排序。
func (b *Book) List() []Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Position, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, snapshot(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols 返回当前需要行情监控的标的集合。
func (b *Book) Symbols() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.positions))
	for symbol := range b.positions {
		out = append(out, symbol)
	}
	sort.Strings(out)
	return out
}

func snapshot(p *Position) Position {
	cp := *p
	cp.Entries = append([]float64(nil), p.Entries...)
	cp.TakeProfits = append([]Level(nil), p.TakeProfits...)
	return cp
}

func stopHit(side signal.Side, price, stop float64) bool {
	if side == signal.SideLong {
		return price <= stop
	}
	return price >= stop
}

func targetHit(side signal.Side, price, target float64) bool {
	if side == signal.SideLong {
		return price >= target
	}
	return price <= target
}
