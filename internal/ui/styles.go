package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Amber
)

// HeaderBar style for the conversation tabs at the top.
var HeaderBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236"))

// ActiveTab style for the selected conversation tab.
var ActiveTab = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// InactiveTab style for other conversation tabs.
var InactiveTab = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// AuthorStyle for the message author.
var AuthorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)

// TimestampStyle for message timestamps.
var TimestampStyle = lipgloss.NewStyle().
	Foreground(colorMuted)

// BodyStyle for message text. Width is set per render.
var BodyStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("252")).
	PaddingLeft(2)

// ImagePlaceholder renders the box standing in for an embedded image.
var ImagePlaceholder = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorMuted).
	Align(lipgloss.Center, lipgloss.Center).
	MarginLeft(2)

// Separator between messages.
var Separator = lipgloss.NewStyle().
	Foreground(lipgloss.Color("237"))

// IndicatorBar style for the "new messages" bar.
var IndicatorBar = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("232")).
	Background(colorWarn).
	Padding(0, 1)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// StatusBarKey style for key hints in status bar.
var StatusBarKey = lipgloss.NewStyle().
	Foreground(colorHighlight).
	Bold(true)

// StatusBarText style for descriptive text in status bar.
var StatusBarText = lipgloss.NewStyle().
	Foreground(colorSecondary)

// FollowingBadge marks a view that tracks the tail.
var FollowingBadge = lipgloss.NewStyle().
	Foreground(colorSuccess).
	Bold(true)

// DetachedBadge marks a view scrolled away from the tail.
var DetachedBadge = lipgloss.NewStyle().
	Foreground(colorWarn).
	Bold(true)

// ErrorStyle for displaying errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("196")).
	Bold(true).
	Padding(0, 1)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)

// DebugPanel style for the debug overlay.
var DebugPanel = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(1, 2)

// DebugHeaderStyle for section headers inside the debug overlay.
var DebugHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight)
