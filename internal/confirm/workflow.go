package confirm

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"copy-trader/internal/signal"
)

// State 表示单个意图在确认流程中的阶段。
type State string

const (
	StateDetected  State = "DETECTED"
	StateAwaiting  State = "AWAITING_CONFIRMATION"
	StateConfirmed State = "CONFIRMED"
	StateIgnored   State = "IGNORED"
	StateExpired   State = "EXPIRED"
)

var (
	// ErrUnknownIntent 表示审批事件找不到对应的待确认意图。
	ErrUnknownIntent = errors.New("confirm: 未找到待确认意图")
	// ErrAlreadyResolved 表示意图已被处理，重复审批不再生效。
	ErrAlreadyResolved = errors.New("confirm: 意图已处理")
	// ErrDuplicateSignal 表示同一信号已执行过，拦截重复执行。
	ErrDuplicateSignal = errors.New("confirm: 重复信号已拦截")
)

// Pending 为确认流程中的一条记录。
type Pending struct {
	ID        string
	Intent    *signal.Intent
	State     State
	CreatedAt time.Time
	ExpiresAt time.Time

	execKey uint64
}

// Approval 为外部审批事件。
type Approval struct {
	IntentID string
	Approve  bool
}

// Workflow 将意图按 Detected → AwaitingConfirmation → {Confirmed, Ignored,
// Expired} 推进；自动模式下 Detected 直接进入 Confirmed。
// 已确认的信号以 符号+首个入场价+消息时间戳 的散列登记，
// 即使传输层重复投递审批事件也只会执行一次。
type Workflow struct {
	mu       sync.Mutex
	ttl      time.Duration
	auto     bool
	pending  map[string]*Pending
	executed map[uint64]bool
	logger   *zap.Logger
}

// NewWorkflow 创建确认流程。ttl 为人工确认的有效期，超时即作废。
func NewWorkflow(auto bool, ttl time.Duration, logger *zap.Logger) *Workflow {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Workflow{
		ttl:      ttl,
		auto:     auto,
		pending:  make(map[string]*Pending),
		executed: make(map[uint64]bool),
		logger:   logger,
	}
}

// AutoExecute 返回当前是否自动执行。
func (w *Workflow) AutoExecute() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.auto
}

// ToggleAuto 切换自动执行开关，返回切换后的状态。
func (w *Workflow) ToggleAuto() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.auto = !w.auto
	return w.auto
}

// Submit 登记一个已通过校验的意图。
// 返回的 confirmed 为 true 时意图已获准执行（自动模式）；否则进入等待，
// 直至 Resolve 或过期。重复信号返回 ErrDuplicateSignal。
func (w *Workflow) Submit(intent *signal.Intent) (*Pending, bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := executionKey(intent)
	if w.executed[key] {
		return nil, false, ErrDuplicateSignal
	}

	now := time.Now().UTC()
	p := &Pending{
		ID:        uuid.NewString(),
		Intent:    intent,
		State:     StateDetected,
		CreatedAt: now,
		ExpiresAt: now.Add(w.ttl),
		execKey:   key,
	}

	if w.auto {
		p.State = StateConfirmed
		w.executed[key] = true
		return p, true, nil
	}

	p.State = StateAwaiting
	w.pending[p.ID] = p
	return p, false, nil
}

// Resolve 处理一条审批事件。approve 为 true 时意图转为 Confirmed，
// 且同一意图的后续审批返回 ErrAlreadyResolved，入场单至多下一次。
func (w *Workflow) Resolve(id string, approve bool) (*Pending, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	p, ok := w.pending[id]
	if !ok {
		return nil, ErrUnknownIntent
	}
	if p.State != StateAwaiting {
		return p, ErrAlreadyResolved
	}

	if !approve {
		p.State = StateIgnored
		delete(w.pending, id)
		return p, nil
	}

	if w.executed[p.execKey] {
		p.State = StateIgnored
		delete(w.pending, id)
		return p, ErrDuplicateSignal
	}

	p.State = StateConfirmed
	w.executed[p.execKey] = true
	delete(w.pending, id)
	return p, nil
}

// Expire 作废所有超过有效期的待确认意图，返回被作废的记录。
// 无界的等待会让过期审批打在已经走远的行情上，必须显式收割。
func (w *Workflow) Expire(now time.Time) []*Pending {
	w.mu.Lock()
	defer w.mu.Unlock()

	var expired []*Pending
	for id, p := range w.pending {
		if now.After(p.ExpiresAt) {
			p.State = StateExpired
			expired = append(expired, p)
			delete(w.pending, id)
		}
	}
	return expired
}

// Awaiting 返回当前等待确认的意图快照。
func (w *Workflow) Awaiting() []Pending {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]Pending, 0, len(w.pending))
	for _, p := range w.pending {
		out = append(out, *p)
	}
	return out
}

// executionKey 以 符号+首个入场价+来源时间戳 生成至多一次执行键。
func executionKey(intent *signal.Intent) uint64 {
	h := fnv.New64a()
	entry := 0.0
	if len(intent.Entries) > 0 {
		entry = intent.Entries[0]
	}
	fmt.Fprintf(h, "%s|%s|%.8f|%d", intent.Symbol, intent.Side, entry, intent.SourceTimestamp.UnixNano())
	return h.Sum64()
}
