// Package ui provides the Bubble Tea TUI for tailfeed.
package ui

import (
	"github.com/abelbrown/tailfeed/internal/feed"
	"github.com/abelbrown/tailfeed/internal/store"
)

// ConversationsLoaded is sent when the conversation list is read.
type ConversationsLoaded struct {
	Conversations []store.Conversation
	Err           error
}

// MessagesLoaded carries a snapshot of one conversation's tail.
type MessagesLoaded struct {
	Conversation string
	Items        []feed.Item
	Err          error

	// req is the App's load number for this snapshot; 0 when the
	// snapshot was not requested through the App.
	req uint64
}

// MessagesChanged is sent by the store watcher when messages were appended
// or deleted anywhere.
type MessagesChanged struct {
	Watermark store.Watermark
}

// FetchComplete is sent when a background fetch of one source finishes.
type FetchComplete struct {
	Source       string
	Conversation string
	NewItems     int
	Err          error
}

// scrollDueMsg fires a deferred follow scroll. view tags the FeedView
// generation that scheduled it so late ticks are dropped after a switch.
type scrollDueMsg struct {
	view uint64
	id   uint64
}

// animFrameMsg advances the smooth-scroll spring of one view.
type animFrameMsg struct {
	view uint64
}
