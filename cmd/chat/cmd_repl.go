package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"langgraph-chat/app/conversation/models"
	"langgraph-chat/app/conversation/service"
	apperrors "langgraph-chat/app/pkg/errors"
)

// replCmd starts the interactive session
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive chat session",
	Long: `Chat line by line. Lines starting with a slash are commands:

  /new [title]     start a new conversation
  /list            list conversations, syncing with the backend
  /switch <n|id>   switch to a conversation by list number or id
  /retry           resend the last failed message
  /quit            leave`,
	RunE: runRepl,
}

func runRepl(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sess, err := startSession(ctx, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	g, gctx := errgroup.WithContext(ctx)
	if projectionAddr != "" {
		if err := startProjection(gctx, g, sess.Controller(), projectionAddr); err != nil {
			return err
		}
	}

	name := "there"
	if user, ok := sess.Identity().User(); ok {
		name = user.DisplayName()
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Hi %s. Type a message, or /help for commands.\n", name)

	r := &repl{ctrl: sess.Controller(), in: cmd.InOrStdin(), out: cmd.OutOrStdout()}
	runErr := r.run(gctx)

	cancel()
	if err := g.Wait(); err != nil {
		log.LogError(err, "Background task failed")
	}
	return runErr
}

// repl reads commands and messages from in and prints results to out
type repl struct {
	ctrl *service.Controller
	in   io.Reader
	out  io.Writer
}

func (r *repl) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	r.prompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := r.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				fmt.Fprintf(r.out, "! %s\n", apperrors.GetErrorMessage(err))
			}
			if quit {
				return nil
			}
			r.prompt()
		}
	}
}

func (r *repl) prompt() {
	title := "no conversation"
	if conv, ok := r.ctrl.State().Current(); ok {
		title = conv.Title
	}
	fmt.Fprintf(r.out, "[%s] > ", title)
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		ticket, err := r.ctrl.Send(ctx, line)
		if err != nil {
			return false, err
		}
		return false, r.await(ctx, ticket)
	}

	command, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch command {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, "Commands: /new [title], /list, /switch <n|id>, /retry, /quit")
	case "/new":
		conv, err := r.ctrl.CreateConversation(ctx, arg)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "Started %q\n", conv.Title)
	case "/list":
		if _, err := r.ctrl.LoadConversations(ctx); err != nil {
			return false, err
		}
		r.list()
	case "/switch":
		return false, r.switchTo(arg)
	case "/retry":
		return false, r.retry(ctx)
	default:
		fmt.Fprintf(r.out, "Unknown command %s, try /help\n", command)
	}
	return false, nil
}

func (r *repl) list() {
	state := r.ctrl.State()
	if len(state.Conversations) == 0 {
		fmt.Fprintln(r.out, "No conversations yet")
		return
	}
	for i, conv := range state.Conversations {
		marker := " "
		if conv.ID == state.CurrentConversationID {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %d. %s (%d messages)\n", marker, i+1, conv.Title, len(conv.Messages))
	}
}

func (r *repl) switchTo(arg string) error {
	if arg == "" {
		return apperrors.NewValidationError("usage: /switch <n|id>")
	}
	convs := r.ctrl.State().Conversations
	id := arg
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(convs) {
		id = convs[n-1].ID
	}
	if err := r.ctrl.SelectConversation(id); err != nil {
		return err
	}
	conv, _ := r.ctrl.State().Current()
	fmt.Fprintf(r.out, "Switched to %q\n", conv.Title)
	for _, m := range conv.Messages {
		r.printMessage(m)
	}
	return nil
}

func (r *repl) retry(ctx context.Context) error {
	conv, ok := r.ctrl.State().Current()
	if !ok {
		return apperrors.NewValidationError("no conversation selected")
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		m := conv.Messages[i]
		if m.Role == models.RoleUser && m.Status == models.StatusError {
			ticket, err := r.ctrl.Retry(conv.ID, m.ID)
			if err != nil {
				return err
			}
			return r.await(ctx, ticket)
		}
	}
	return apperrors.NewValidationError("nothing to retry")
}

// await shows the typing hint and blocks until the submission settles
func (r *repl) await(ctx context.Context, ticket *service.Ticket) error {
	if state := r.ctrl.State(); state.IsTyping && state.CurrentConversationID == ticket.ConversationID {
		agent := string(state.TypingAgent)
		if agent == "" {
			agent = "assistant"
		}
		fmt.Fprintf(r.out, "... %s is typing\n", agent)
	}

	outcome, err := ticket.Wait(ctx)
	if err != nil {
		return err
	}
	if outcome.Err != nil {
		fmt.Fprintf(r.out, "! not delivered: %s (type /retry to resend)\n", apperrors.GetErrorMessage(outcome.Err))
		return nil
	}
	if outcome.AssistantMessage != nil {
		r.printMessage(*outcome.AssistantMessage)
	}
	return nil
}

func (r *repl) printMessage(m models.Message) {
	switch m.Role {
	case models.RoleAssistant:
		fmt.Fprintf(r.out, "%s: %s\n", agentLabel(m.AgentUsed), m.Content)
	default:
		suffix := ""
		if m.Status == models.StatusError {
			suffix = " [failed]"
		}
		fmt.Fprintf(r.out, "you: %s%s\n", m.Content, suffix)
	}
}

func agentLabel(a models.AgentType) string {
	switch a {
	case models.AgentTherapist:
		return "therapist"
	case models.AgentLogical:
		return "logical"
	}
	return "assistant"
}
