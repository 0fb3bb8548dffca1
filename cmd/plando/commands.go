package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"plando/internal/dialogue"
)

// chatCmd is the explicit form of the default interactive mode.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

// askCmd answers a single question and exits. Useful for scripting and
// for smoke-testing a deployment's catalog and credentials.
var askCmd = &cobra.Command{
	Use:   "ask [text]",
	Short: "Answer one question and exit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		reply, err := a.orchestrator.HandleTurn(cmd.Context(), dialogue.Turn{
			SenderID: chatSenderID,
			Text:     strings.Join(args, " "),
		})
		if err != nil {
			return err
		}
		fmt.Println(reply.Text)
		return nil
	},
}

// catalogCmd prints the loaded catalog as the guided-help menu. It
// doubles as a lint: a broken catalog file fails here before any user
// sees it.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Show the loaded intent catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		fmt.Println(a.catalog.Menu())
		fmt.Printf("\n%d intents loaded.\n", a.catalog.Size())
		return nil
	},
}

// historyCmd inspects the transcript store.
var historyCmd = &cobra.Command{
	Use:   "history [sender]",
	Short: "Show recent recorded turns for a sender",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if a.transcript == nil {
			return fmt.Errorf("transcript store is not enabled (set store.enabled in the config)")
		}

		sender := chatSenderID
		if len(args) > 0 {
			sender = args[0]
		}

		rows, err := a.transcript.RecentBySender(context.Background(), sender, 20)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Printf("No recorded turns for sender %s.\n", sender)
			return nil
		}
		for _, r := range rows {
			fmt.Printf("%s  %-22s %-10s %-20s %4dms\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Intent, r.Provenance, r.ReplyMode, r.TotalMs)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		printVersion()
	},
}
