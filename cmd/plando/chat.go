package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"plando/internal/dialogue"
	"plando/internal/logging"
)

// chatSenderID identifies the local terminal user to the session
// store. A messaging frontend would pass real sender ids instead.
const chatSenderID = "local"

// runChat starts the interactive loop plus the background components
// (session sweeper, catalog watcher) and tears everything down on EOF
// or SIGINT.
func runChat() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.sessions.StartSweeper(a.cfg.GetSweepInterval())
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			logging.Get(logging.CategoryCatalog).Warn("Catalog watch not started: %v", err)
		}
	}

	if err := readLoop(ctx, a); err != nil && err != context.Canceled {
		return err
	}
	fmt.Println("\nArrivederci!")
	return nil
}

func readLoop(ctx context.Context, a *app) error {
	fmt.Printf("%s: ask about the plan portfolio (exit with Ctrl-D or /quit)\n\n", a.cfg.Name)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" || line == "/exit" {
			return nil
		}
		if line == "" {
			continue
		}

		reply, err := a.orchestrator.HandleTurn(ctx, dialogue.Turn{
			SenderID: chatSenderID,
			Text:     line,
		})
		if err != nil {
			return err
		}

		fmt.Printf("plando> %s\n", reply.Text)
		if logging.IsDebugMode() {
			fmt.Printf("        [turn=%s intent=%s via=%s mode=%s in %v]\n",
				reply.Trace.TurnID, reply.Trace.Intent, reply.Trace.Provenance,
				reply.Mode, reply.Trace.Total)
		}
	}
}
