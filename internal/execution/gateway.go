package execution

import "context"

// Gateway 抽象执行端，方便切换真实或模拟下单。
type Gateway interface {
	PlaceEntry(ctx context.Context, order EntryOrder) error
	ClosePosition(ctx context.Context, order CloseOrder) error
}

var (
	_ Gateway = (*Executor)(nil)
	_ Gateway = (*SimulatedExecutor)(nil)
)
