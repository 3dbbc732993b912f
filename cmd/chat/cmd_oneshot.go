package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"langgraph-chat/app/ai"
	"langgraph-chat/app/conversation/models"
)

var (
	sendConversationID string
	sendTitle          string
)

// sendCmd sends one message and prints the reply
var sendCmd = &cobra.Command{
	Use:   "send [text]",
	Short: "Send a single message and print the reply",
	Long: `Sends one message through the full client lifecycle and prints the reply.

Without --conversation a new conversation is created first.

Example:
  chat send "I feel overwhelmed by exams"
  chat send --conversation 3f0c... "and what about next week?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

// conversationsCmd lists the backend's conversations
var conversationsCmd = &cobra.Command{
	Use:     "conversations",
	Aliases: []string{"ls"},
	Short:   "List conversations known to the backend",
	RunE:    runConversations,
}

// healthCmd probes the backend
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the backend is reachable",
	RunE:  runHealth,
}

func init() {
	sendCmd.Flags().StringVarP(&sendConversationID, "conversation", "c", "", "Existing conversation id")
	sendCmd.Flags().StringVar(&sendTitle, "title", "", "Title of the new conversation")
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	sess, err := startSession(ctx, sendConversationID != "")
	if err != nil {
		return err
	}
	defer sess.Close()
	ctrl := sess.Controller()

	if sendConversationID != "" {
		if err := ctrl.SelectConversation(sendConversationID); err != nil {
			return err
		}
	} else if _, err := ctrl.CreateConversation(ctx, sendTitle); err != nil {
		return err
	}

	ticket, err := ctrl.Send(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	outcome, err := ticket.Wait(ctx)
	if err != nil {
		return err
	}
	if outcome.Err != nil {
		return outcome.Err
	}

	out := cmd.OutOrStdout()
	reply := outcome.AssistantMessage
	fmt.Fprintf(out, "%s: %s\n", agentLabel(reply.AgentUsed), reply.Content)
	fmt.Fprintf(out, "conversation: %s\n", ticket.ConversationID)
	return nil
}

func runConversations(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	gw, err := newGateway()
	if err != nil {
		return err
	}
	summaries, err := gw.ListConversations(ctx)
	if err != nil {
		return err
	}
	printSummaries(cmd.OutOrStdout(), summaries)
	return nil
}

func printSummaries(out io.Writer, summaries []models.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No conversations yet")
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tMESSAGES\tUPDATED")
	for _, s := range summaries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.ID, s.Title, s.MessageCount, s.UpdatedAt.Local().Format(time.DateTime))
	}
	_ = w.Flush()
}

func runHealth(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	gw, err := newGateway()
	if err != nil {
		return err
	}
	resp, err := gw.HealthCheck(ctx)
	if err != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "disconnected: %v\n", err)
		return err
	}

	state := "connected"
	if !resp.Connected() {
		state = "disconnected"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s), responder %s\n", state, resp.Status, resp.Message, resp.LangGraphStatus)
	if !resp.Connected() {
		return fmt.Errorf("backend reports %s", resp.Status)
	}
	return nil
}

// newGateway builds a bare gateway for commands that need no session state
func newGateway() (*ai.HTTPGateway, error) {
	identity, err := newIdentity()
	if err != nil {
		return nil, err
	}
	return ai.NewHTTPGateway(apiURL,
		ai.WithToken(identity.Token),
		ai.WithTimeout(requestTimeout),
		ai.WithLogger(log),
		ai.WithMetrics(metrics),
	)
}
