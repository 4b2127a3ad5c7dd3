package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"copy-trader/internal/position"
	"copy-trader/internal/signal"
	"copy-trader/internal/store"
)

// Service 负责持久化事件流水。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewService 初始化流水服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS trade_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_events_type ON trade_events(event_type);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO trade_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordSignal 记录解析出的交易意图。
func (s *Service) RecordSignal(ctx context.Context, intentID string, intent signal.Intent) {
	if err := s.Record(ctx, Event{
		Type:      EventSignalDetected,
		Timestamp: time.Now().UTC(),
		Payload:   SignalPayload{IntentID: intentID, Intent: intent},
	}); err != nil {
		s.logger.Warn("记录信号事件失败", zap.Error(err))
	}
}

// RecordRejection 记录被风控或解析拒绝的意图。
func (s *Service) RecordRejection(ctx context.Context, intent signal.Intent, reason string) {
	if err := s.Record(ctx, Event{
		Type:      EventSignalRejected,
		Timestamp: time.Now().UTC(),
		Payload:   RejectionPayload{Intent: intent, Reason: reason},
	}); err != nil {
		s.logger.Warn("记录拒绝事件失败", zap.Error(err))
	}
}

// RecordConfirmation 记录确认流程的状态变化。
func (s *Service) RecordConfirmation(ctx context.Context, intentID, state string, auto bool) {
	if err := s.Record(ctx, Event{
		Type:      EventConfirmation,
		Timestamp: time.Now().UTC(),
		Payload:   ConfirmationPayload{IntentID: intentID, State: state, Auto: auto},
	}); err != nil {
		s.logger.Warn("记录确认事件失败", zap.Error(err))
	}
}

// RecordExecution 记录开仓执行结果。
func (s *Service) RecordExecution(ctx context.Context, intentID string, pos position.Position) {
	if err := s.Record(ctx, Event{
		Type:      EventExecution,
		Timestamp: time.Now().UTC(),
		Payload:   ExecutionPayload{IntentID: intentID, Position: pos},
	}); err != nil {
		s.logger.Warn("记录执行事件失败", zap.Error(err))
	}
}

// RecordClose 记录一次平仓动作。
func (s *Service) RecordClose(ctx context.Context, action position.CloseAction, status position.Status) {
	if err := s.Record(ctx, Event{
		Type:      EventPositionClose,
		Timestamp: time.Now().UTC(),
		Payload:   PositionClosePayload{Action: action, Status: status},
	}); err != nil {
		s.logger.Warn("记录平仓事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Error:   err.Error(),
		Context: ctxMap,
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM trade_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("journal: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 读取事件失败: %w", err)
	}

	return events, nil
}
