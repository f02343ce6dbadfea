package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/tailfeed/internal/store"
	"github.com/abelbrown/tailfeed/internal/ui"
)

// loadConversations lists conversations off the UI goroutine.
func loadConversations(st *store.Store) func() tea.Cmd {
	return func() tea.Cmd {
		return func() tea.Msg {
			convs, err := st.Conversations()
			return ui.ConversationsLoaded{Conversations: convs, Err: err}
		}
	}
}

// loadMessages reads the tail of one conversation. Each call returns a fresh
// snapshot; the FeedView diffs nothing and re-plans on every load.
func loadMessages(st *store.Store, limit int) func(string) tea.Cmd {
	return func(convID string) tea.Cmd {
		return func() tea.Msg {
			items, err := st.Messages(convID, limit)
			return ui.MessagesLoaded{Conversation: convID, Items: items, Err: err}
		}
	}
}
