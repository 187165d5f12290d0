package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/agent"
)

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the issue-tracking assistant",
	Long: `Talk to the issue-tracking assistant. With a message argument the
assistant answers once and exits; without one it starts an interactive
session. Pass --session to continue an earlier conversation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		a, err := agent.New(cfg, orch, sess, slog.Default())
		if err != nil {
			return err
		}

		if len(args) > 0 {
			return runTurn(cmd, a, strings.Join(args, " "))
		}

		fmt.Println("Chatting with the assistant. Empty line or Ctrl-D exits.")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				return scanner.Err()
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				return nil
			}
			if err := runTurn(cmd, a, line); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
			}
		}
	},
}

func runTurn(cmd *cobra.Command, a *agent.Agent, message string) error {
	result, err := a.Turn(cmd.Context(), actor(), teamID, chatSessionID, message)
	if err != nil {
		return err
	}
	chatSessionID = result.SessionID

	if jsonOutput {
		return outputJSON(result)
	}
	for _, call := range result.ToolCalls {
		status := call.Result
		if call.Error != "" {
			status = "failed: " + call.Error
		}
		fmt.Printf("  [%s] %s\n", call.Name, status)
	}
	fmt.Println(result.Reply)
	return nil
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List your chat sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		list, err := sess.List(cmd.Context(), teamID, actor().UserID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(list)
		}
		if len(list) == 0 {
			fmt.Println("No sessions.")
			return nil
		}
		for _, s := range list {
			title := s.Title
			if title == "" {
				title = "(untitled)"
			}
			fmt.Printf("%s  %-50s %s\n", s.ID, title, humanize.Time(s.UpdatedAt))
		}
		return nil
	},
}

var sessionDeleteCmd = &cobra.Command{
	Use:   "session-delete <session-id>",
	Short: "Delete one of your chat sessions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireTeam(); err != nil {
			return err
		}
		if err := sess.Delete(cmd.Context(), teamID, actor().UserID, args[0]); err != nil {
			return err
		}
		fmt.Println("Session deleted.")
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Continue an existing session")
	rootCmd.AddCommand(chatCmd, sessionsCmd, sessionDeleteCmd)
}
