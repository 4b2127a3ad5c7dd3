package source

import (
	"time"

	"copy-trader/internal/config"
)

// Message 为来自聊天渠道的一条原始消息。
type Message struct {
	ChannelID string    `json:"channel_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Filter 按白名单过滤消息来源，白名单留空表示不限制。
type Filter struct {
	channels map[string]struct{}
	authors  map[string]struct{}
}

// NewFilter 依据配置构造来源过滤器。
func NewFilter(cfg config.SourceConfig) *Filter {
	f := &Filter{
		channels: make(map[string]struct{}, len(cfg.ChannelIDs)),
		authors:  make(map[string]struct{}, len(cfg.AuthorIDs)),
	}
	for _, id := range cfg.ChannelIDs {
		f.channels[id] = struct{}{}
	}
	for _, id := range cfg.AuthorIDs {
		f.authors[id] = struct{}{}
	}
	return f
}

// Allow 判断消息是否来自允许的渠道与作者。
func (f *Filter) Allow(msg Message) bool {
	if len(f.channels) > 0 {
		if _, ok := f.channels[msg.ChannelID]; !ok {
			return false
		}
	}
	if len(f.authors) > 0 {
		if _, ok := f.authors[msg.AuthorID]; !ok {
			return false
		}
	}
	return true
}
