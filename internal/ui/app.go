package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/tailfeed/internal/otel"
	"github.com/abelbrown/tailfeed/internal/store"
)

// AppConfig holds the App's injected command funcs and view tuning.
// IMPORTANT: App does NOT hold *store.Store. It receives data via messages.
type AppConfig struct {
	LoadConversations func() tea.Cmd
	LoadMessages      func(convID string) tea.Cmd
	TriggerFetch      func() tea.Cmd // optional

	View    ViewOptions
	Ring    *otel.RingBuffer // optional, feeds the debug overlay
	Initial string           // conversation to open first; empty picks the first
}

// App is the root Bubble Tea model.
type App struct {
	cfg  AppConfig
	keys keyMap

	convs   []store.Conversation
	current int
	view    *FeedView

	// Message loads are numbered; a snapshot older than the last one
	// applied is dropped.
	loadSeq uint64
	applied uint64

	spinner   spinner.Model
	err       error
	width     int
	height    int
	ready     bool
	loading   bool
	showDebug bool
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg AppConfig) App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = StatusBarKey
	return App{
		cfg:     cfg,
		keys:    defaultKeyMap(),
		spinner: sp,
		loading: cfg.LoadConversations != nil,
	}
}

// Init loads the conversation list.
func (a App) Init() tea.Cmd {
	if a.cfg.LoadConversations == nil {
		return nil
	}
	return tea.Batch(a.cfg.LoadConversations(), a.spinner.Tick)
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.cfg.View.Events.Debug(otel.KindMsgReceived, "trace", a.currentID(), fmt.Sprintf("%T", msg))
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKeyMsg(msg)

	case tea.MouseMsg:
		if a.view != nil {
			return a, a.view.Update(msg)
		}
		return a, nil

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		if a.view != nil {
			a.view.SetSize(a.width, a.viewHeight())
		}
		return a, nil

	case ConversationsLoaded:
		if msg.Err != nil {
			a.err = msg.Err
			a.loading = false
			return a, nil
		}
		return a.setConversations(msg.Conversations)

	case MessagesLoaded:
		a.loading = false
		if msg.Err != nil {
			a.err = msg.Err
			return a, nil
		}
		if msg.Conversation != a.currentID() {
			return a, nil // switched away while loading
		}
		if msg.req != 0 {
			if msg.req < a.applied {
				return a, nil // overtaken by a newer load
			}
			a.applied = msg.req
		}
		if a.view != nil && a.view.Conversation() == msg.Conversation {
			return a, a.view.SetItems(msg.Items)
		}
		a.view = NewFeedView(msg.Conversation, msg.Items, a.width, a.viewHeight(), a.cfg.View)
		return a, nil

	case MessagesChanged:
		cmd := tea.Batch(a.loadCurrent(), a.loadConversations())
		return a, cmd

	case FetchComplete:
		a.loading = false
		if msg.Err != nil {
			a.err = fmt.Errorf("%s: %w", msg.Source, msg.Err)
			return a, nil
		}
		if msg.NewItems > 0 && msg.Conversation == a.currentID() {
			cmd := a.loadCurrent()
			return a, cmd
		}
		return a, nil

	case scrollDueMsg:
		if a.view != nil && a.view.ID() == msg.view {
			return a, a.view.Update(msg)
		}
		return a, nil // view was unmounted

	case animFrameMsg:
		if a.view != nil && a.view.ID() == msg.view {
			return a, a.view.Update(msg)
		}
		return a, nil

	case spinner.TickMsg:
		if !a.loading {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// setConversations installs a new list, keeping the current conversation
// selected when it still exists.
func (a App) setConversations(convs []store.Conversation) (tea.Model, tea.Cmd) {
	prev := a.currentID()
	if prev == "" {
		prev = a.cfg.Initial
	}
	a.convs = convs
	a.current = 0
	for i, c := range convs {
		if c.ID == prev {
			a.current = i
			break
		}
	}
	if a.currentID() == "" {
		a.closeView()
		return a, nil
	}
	if a.view != nil && a.view.Conversation() == a.currentID() {
		return a, nil
	}
	a.closeView()
	cmd := a.loadCurrent()
	return a, cmd
}

// handleKeyMsg processes keyboard input.
func (a App) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Clear any existing error on key press
	if a.err != nil {
		a.err = nil
	}
	a.cfg.View.Events.Debug(otel.KindKeyPress, "ui", a.currentID(), msg.String())

	switch {
	case key.Matches(msg, a.keys.Quit):
		a.closeView()
		return a, tea.Quit

	case key.Matches(msg, a.keys.Debug):
		a.showDebug = !a.showDebug
		return a, nil

	case key.Matches(msg, a.keys.NextConv):
		return a.switchTo(a.current + 1)

	case key.Matches(msg, a.keys.PrevConv):
		return a.switchTo(a.current - 1)

	case key.Matches(msg, a.keys.Reload):
		cmd := tea.Batch(a.loadCurrent(), a.loadConversations())
		return a, cmd

	case key.Matches(msg, a.keys.Fetch):
		if a.cfg.TriggerFetch != nil {
			a.loading = true
			return a, tea.Batch(a.cfg.TriggerFetch(), a.spinner.Tick)
		}
		return a, nil
	}

	if a.view != nil {
		return a, a.view.Update(msg)
	}
	return a, nil
}

// switchTo unmounts the current view and loads conversation i (wrapping).
func (a App) switchTo(i int) (tea.Model, tea.Cmd) {
	n := len(a.convs)
	if n < 2 {
		return a, nil
	}
	a.current = ((i % n) + n) % n
	a.closeView()
	cmd := a.loadCurrent()
	return a, cmd
}

func (a *App) closeView() {
	if a.view != nil {
		a.view.Close()
		a.view = nil
	}
}

func (a *App) loadCurrent() tea.Cmd {
	id := a.currentID()
	if id == "" || a.cfg.LoadMessages == nil {
		return nil
	}
	a.loadSeq++
	load := numberLoad(a.cfg.LoadMessages(id), a.loadSeq)
	if a.view == nil {
		a.loading = true
		return tea.Batch(load, a.spinner.Tick)
	}
	return load
}

// numberLoad stamps the snapshot produced by cmd with load number req.
func numberLoad(cmd tea.Cmd, req uint64) tea.Cmd {
	if cmd == nil {
		return nil
	}
	return func() tea.Msg {
		msg := cmd()
		if m, ok := msg.(MessagesLoaded); ok {
			m.req = req
			return m
		}
		return msg
	}
}

func (a App) loadConversations() tea.Cmd {
	if a.cfg.LoadConversations == nil {
		return nil
	}
	return a.cfg.LoadConversations()
}

func (a App) currentID() string {
	if a.current < 0 || a.current >= len(a.convs) {
		return ""
	}
	return a.convs[a.current].ID
}

// viewHeight is the terminal height minus the header, status bar and
// (when present) the error bar.
func (a App) viewHeight() int {
	h := a.height - 2
	if a.err != nil {
		h--
	}
	return max(h, 1)
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.showDebug {
		return debugOverlay(a.cfg.Ring, a.view, a.width, a.height-1) + "\n" + debugStatusBar(a.width)
	}

	var body string
	switch {
	case len(a.convs) == 0 && a.loading:
		body = HelpStyle.Render(a.spinner.View() + " Loading conversations...")
	case len(a.convs) == 0:
		body = HelpStyle.Render("No conversations yet. Post one with: tfctl post <conversation> <text>")
	case a.view == nil:
		body = HelpStyle.Render(a.spinner.View() + " Loading messages...")
	default:
		body = a.view.View()
	}
	body = padLines(body, a.viewHeight())

	parts := []string{a.renderHeader(), body}
	if a.err != nil {
		parts = append(parts, ErrorStyle.Width(a.width).Render(
			runewidth.Truncate("Error: "+a.err.Error()+" (press any key to dismiss)", max(a.width-2, 1), "…")))
	}
	parts = append(parts, a.renderStatusBar())
	return strings.Join(parts, "\n")
}

// renderHeader draws one tab per conversation, truncated to the width.
func (a App) renderHeader() string {
	var b strings.Builder
	used := 0
	for i, c := range a.convs {
		label := runewidth.Truncate(c.Title, 24, "…")
		w := runewidth.StringWidth(label) + 2
		if used+w > a.width {
			break
		}
		if i == a.current {
			b.WriteString(ActiveTab.Render(label))
		} else {
			b.WriteString(InactiveTab.Render(label))
		}
		used += w
	}
	return HeaderBar.Width(a.width).Render(b.String())
}

// renderStatusBar shows follow state, layout mode, position and key hints.
func (a App) renderStatusBar() string {
	var parts []string
	if a.loading {
		parts = append(parts, a.spinner.View())
	}

	if v := a.view; v != nil {
		if v.Controller().IsFollowing() {
			parts = append(parts, FollowingBadge.Render("● following"))
		} else {
			parts = append(parts, DetachedBadge.Render("○ detached"))
		}

		mode := "measured"
		if v.Plan().Virtualize {
			mode = "virtualized"
		}
		parts = append(parts, StatusBarText.Render(fmt.Sprintf("%d msgs · %s", len(v.Items()), mode)))

		if total := v.TotalRows(); total > 0 {
			g := v.surf.Geometry()
			parts = append(parts, StatusBarText.Render(fmt.Sprintf("%3.0f%%", g.Fraction()*100)))
		}
	}

	keys := StatusBarKey.Render("G") + StatusBarText.Render(":latest ") +
		StatusBarKey.Render("tab") + StatusBarText.Render(":next ") +
		StatusBarKey.Render("D") + StatusBarText.Render(":debug ") +
		StatusBarKey.Render("q") + StatusBarText.Render(":quit")
	parts = append(parts, keys)

	return StatusBar.Width(a.width).Render(strings.Join(parts, "  "))
}

// padLines pads or clips s to exactly n lines.
func padLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// FeedView returns the mounted feed view (for testing).
func (a App) FeedView() *FeedView {
	return a.view
}

// Conversations returns the loaded conversations (for testing).
func (a App) Conversations() []store.Conversation {
	return a.convs
}

// Err returns the error shown in the error bar, if any.
func (a App) Err() error {
	return a.err
}
