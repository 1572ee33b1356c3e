// Package cli is the interactive terminal front end: a line-based REPL over
// the synchronization controller. Plain input is sent as a chat message;
// slash commands drive the conversation list.
package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"tebnegar/client/internal/interfaces"
	"tebnegar/client/internal/model"
	"tebnegar/client/internal/state"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

const helpText = `Commands:
  /new                start a new conversation
  /history            list conversations
  /open N             open conversation N from the list
  /rename N TITLE     rename conversation N
  /delete N           delete conversation N
  /good [comment]     rate the last reply as helpful
  /bad [comment]      rate the last reply as unhelpful
  /help               show this help
  /quit               exit

Anything else is sent to the assistant.`

// REPL reads lines and dispatches them to the controller until the user
// quits or input ends.
type REPL struct {
	controller interfaces.ChatController
	states     *state.Store
	out        io.Writer
	line       *liner.State
}

func NewREPL(controller interfaces.ChatController, states *state.Store, out io.Writer) *REPL {
	return &REPL{controller: controller, states: states, out: out}
}

// Run blocks until exit. Controller errors are not re-reported here: every
// user-triggered failure already produced a view notification.
func (r *REPL) Run(ctx context.Context) {
	r.line = liner.NewLiner()
	r.line.SetCtrlCAborts(true)
	defer r.line.Close()

	fmt.Fprintln(r.out, helpStyle.Render("Type /help for commands."))

	for {
		input, err := r.line.Prompt(promptStyle.Render("you ❯ ") + " ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return
			}
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := r.dispatchCommand(ctx, input); quit {
				return
			}
			continue
		}

		if r.states.Get().Phase == model.PhaseDegraded {
			// The banner is already on screen; input stays disabled.
			continue
		}
		_ = r.controller.SendMessage(ctx, input)
	}
}

// dispatchCommand handles one slash command; it reports whether the REPL
// should exit.
func (r *REPL) dispatchCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(input)
	command, args := fields[0], fields[1:]

	switch command {
	case "/quit", "/q", "/exit":
		return true
	case "/help", "/h":
		fmt.Fprintln(r.out, helpStyle.Render(helpText))
	case "/new":
		_ = r.controller.NewConversation(ctx)
	case "/history":
		r.printHistory()
	case "/open":
		if conv, ok := r.pick(args); ok {
			_ = r.controller.OpenConversation(ctx, conv.ID)
		}
	case "/rename":
		if len(args) < 2 {
			fmt.Fprintln(r.out, helpStyle.Render("usage: /rename N TITLE"))
			return false
		}
		if conv, ok := r.pick(args[:1]); ok {
			_ = r.controller.RenameConversation(ctx, conv.ID, strings.Join(args[1:], " "))
		}
	case "/delete":
		if conv, ok := r.pick(args); ok {
			_ = r.controller.DeleteConversation(ctx, conv.ID)
		}
	case "/good":
		_ = r.controller.SubmitFeedback(ctx, model.FeedbackLike, strings.Join(args, " "))
	case "/bad":
		_ = r.controller.SubmitFeedback(ctx, model.FeedbackDislike, strings.Join(args, " "))
	default:
		fmt.Fprintln(r.out, helpStyle.Render("Unknown command. Type /help."))
	}
	return false
}

func (r *REPL) printHistory() {
	conversations := r.controller.Conversations()
	if len(conversations) == 0 {
		fmt.Fprintln(r.out, helpStyle.Render("No conversations yet."))
		return
	}
	current := r.states.Get().ConversationID
	for i, conv := range conversations {
		marker := "  "
		if conv.ID == current {
			marker = "▸ "
		}
		title := conv.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintln(r.out, helpStyle.Render(fmt.Sprintf("%s%2d. %s", marker, i+1, title)))
	}
}

// pick resolves a 1-based list index argument against the sidebar snapshot.
func (r *REPL) pick(args []string) (model.Conversation, bool) {
	if len(args) != 1 {
		fmt.Fprintln(r.out, helpStyle.Render("Expected a conversation number; see /history."))
		return model.Conversation{}, false
	}
	n, err := strconv.Atoi(args[0])
	conversations := r.controller.Conversations()
	if err != nil || n < 1 || n > len(conversations) {
		fmt.Fprintln(r.out, helpStyle.Render("Expected a conversation number; see /history."))
		return model.Conversation{}, false
	}
	return conversations[n-1], true
}
