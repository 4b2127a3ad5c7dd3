package source

import (
	"testing"

	"copy-trader/internal/config"
)

func TestFilter_EmptyListsAllowAll(t *testing.T) {
	f := NewFilter(config.SourceConfig{})
	if !f.Allow(Message{ChannelID: "any", AuthorID: "anyone"}) {
		t.Fatalf("empty allow-lists must allow everything")
	}
}

func TestFilter_ChannelAllowList(t *testing.T) {
	f := NewFilter(config.SourceConfig{ChannelIDs: []string{"calls"}})

	if !f.Allow(Message{ChannelID: "calls", AuthorID: "anyone"}) {
		t.Errorf("allow-listed channel rejected")
	}
	if f.Allow(Message{ChannelID: "general", AuthorID: "anyone"}) {
		t.Errorf("unlisted channel allowed")
	}
}

func TestFilter_AuthorAllowList(t *testing.T) {
	f := NewFilter(config.SourceConfig{AuthorIDs: []string{"trader-1"}})

	if !f.Allow(Message{ChannelID: "calls", AuthorID: "trader-1"}) {
		t.Errorf("allow-listed author rejected")
	}
	if f.Allow(Message{ChannelID: "calls", AuthorID: "impostor"}) {
		t.Errorf("unlisted author allowed")
	}
}

func TestFilter_BothListsMustMatch(t *testing.T) {
	f := NewFilter(config.SourceConfig{
		ChannelIDs: []string{"calls"},
		AuthorIDs:  []string{"trader-1"},
	})

	if !f.Allow(Message{ChannelID: "calls", AuthorID: "trader-1"}) {
		t.Errorf("fully matching message rejected")
	}
	if f.Allow(Message{ChannelID: "calls", AuthorID: "impostor"}) {
		t.Errorf("author mismatch allowed")
	}
	if f.Allow(Message{ChannelID: "general", AuthorID: "trader-1"}) {
		t.Errorf("channel mismatch allowed")
	}
}
