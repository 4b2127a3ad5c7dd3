package signal

import (
	"errors"
	"fmt"
)

// ErrNoSignal 表示消息中不含任何交易动词，属于普通聊天而非错误。
// 调用方不应将其当作失败记录。
var ErrNoSignal = errors.New("signal: 消息不含交易信号")

// ParseReason 标识信号解析失败的具体原因。
type ParseReason string

const (
	ReasonMissingPrice     ParseReason = "MissingPrice"
	ReasonMissingSymbol    ParseReason = "MissingSymbol"
	ReasonAmbiguousGrammar ParseReason = "AmbiguousGrammar"
)

// ParseError 表示消息命中了交易动词但无法还原为完整意图。
type ParseError struct {
	Reason ParseReason
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("signal: 解析失败(%s): %q", e.Reason, e.Text)
}

// IsNoSignal 判断错误是否为"非信号文本"。
func IsNoSignal(err error) bool {
	return errors.Is(err, ErrNoSignal)
}
