package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"tebnegar/client/internal/model"
)

var (
	userLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantLabelStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("42")).
				Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	welcomeStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 2)

	degradedStyle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Padding(0, 2)
)

const welcomeText = `Welcome to TebNegar!

I am an AI-powered preliminary assessment tool.
Please describe your symptoms in detail.

Disclaimer: this is not a medical diagnosis.
Consult a licensed physician for any medical advice.`

// Console renders the chat to a terminal writer. Assistant content goes
// through the configured RenderStrategy; user content and preformatted
// entries are printed as-is.
type Console struct {
	out      io.Writer
	strategy RenderStrategy
	typing   bool
}

func NewConsole(out io.Writer, strategy RenderStrategy) *Console {
	return &Console{out: out, strategy: strategy}
}

func (c *Console) RenderMessage(msg model.Message) {
	switch {
	case msg.Error:
		fmt.Fprintln(c.out, errorStyle.Render("✗ "+msg.Content))
	case msg.Role == model.RoleUser:
		fmt.Fprintf(c.out, "%s %s\n", userLabelStyle.Render("you ❯"), msg.Content)
	case msg.Preformatted:
		fmt.Fprintln(c.out, msg.Content)
	default:
		fmt.Fprintf(c.out, "%s\n%s\n", assistantLabelStyle.Render("tebnegar ❯"), c.strategy.Render(msg.Content))
	}
}

func (c *Console) RenderWelcome() {
	fmt.Fprintln(c.out, welcomeStyle.Render(welcomeText))
}

func (c *Console) ClearTranscript() {
	// The terminal scrollback is not erased; a rule marks the boundary
	// between conversations.
	fmt.Fprintln(c.out, mutedStyle.Render(strings.Repeat("─", 60)))
}

func (c *Console) ShowTyping() {
	if c.typing {
		return
	}
	c.typing = true
	fmt.Fprintln(c.out, mutedStyle.Render("tebnegar is typing…"))
}

func (c *Console) HideTyping() {
	if !c.typing {
		return
	}
	c.typing = false
	// Move up one line and erase the indicator.
	fmt.Fprint(c.out, "\033[1A\033[2K")
}

func (c *Console) UpdateHistory(conversations []model.Conversation, currentID string) {
	if len(conversations) == 0 {
		return
	}
	fmt.Fprintln(c.out, mutedStyle.Render("conversations:"))
	for i, conv := range conversations {
		marker := "  "
		if conv.ID == currentID {
			marker = "▸ "
		}
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		line := fmt.Sprintf("%s%2d. %s  %s", marker, i+1, title, conv.CreatedAt.Format("2006-01-02 15:04"))
		fmt.Fprintln(c.out, mutedStyle.Render(line))
	}
}

func (c *Console) SetBusy(bool) {
	// The REPL reads the busy flag from runtime state before dispatching;
	// there is no widget to disable on a line-based terminal.
}

func (c *Console) Notify(kind NotifyKind, message string) {
	if kind == NotifyError {
		fmt.Fprintln(c.out, errorStyle.Render("! "+message))
		return
	}
	fmt.Fprintln(c.out, successStyle.Render("✓ "+message))
}

func (c *Console) ShowDegraded(reason string) {
	fmt.Fprintln(c.out, degradedStyle.Render("TebNegar is unavailable.\n"+reason+"\nMessage input is disabled; restart the client to try again."))
}
