package journal

import (
	"time"

	"copy-trader/internal/position"
	"copy-trader/internal/signal"
)

// EventType 表示事件流水类型。
type EventType string

const (
	EventSignalDetected EventType = "signal_detected"
	EventSignalRejected EventType = "signal_rejected"
	EventConfirmation   EventType = "confirmation"
	EventExecution      EventType = "execution"
	EventPositionClose  EventType = "position_close"
	EventError          EventType = "error"
)

// Event 封装通用事件流水。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// SignalPayload 记录解析出的交易意图。
type SignalPayload struct {
	IntentID string        `json:"intent_id,omitempty"`
	Intent   signal.Intent `json:"intent"`
}

// RejectionPayload 记录被拒绝的意图及原因。
type RejectionPayload struct {
	Intent signal.Intent `json:"intent"`
	Reason string        `json:"reason"`
}

// ConfirmationPayload 记录确认流程的状态变化。
type ConfirmationPayload struct {
	IntentID string `json:"intent_id"`
	State    string `json:"state"`
	Auto     bool   `json:"auto"`
}

// ExecutionPayload 记录开仓执行结果。
type ExecutionPayload struct {
	IntentID string            `json:"intent_id"`
	Position position.Position `json:"position"`
}

// PositionClosePayload 记录一次平仓动作。
type PositionClosePayload struct {
	Action position.CloseAction `json:"action"`
	Status position.Status      `json:"status"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}
