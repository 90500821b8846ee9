package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wayfarer0/wayfarer/internal/app"
	"github.com/wayfarer0/wayfarer/internal/config"
	"github.com/wayfarer0/wayfarer/internal/log"
	"github.com/wayfarer0/wayfarer/internal/orchestrator"
	"github.com/wayfarer0/wayfarer/internal/status"
)

var (
	askSessionID string
	askShowSteps bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot travel question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(cmd.Context(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().StringVar(&askSessionID, "session", "", "continue an existing session")
	askCmd.Flags().BoolVar(&askShowSteps, "steps", false, "print pipeline progress")
	rootCmd.AddCommand(askCmd)
}

func runAsk(ctx context.Context, query string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	a, err := app.Setup(ctx, cfg, log.New(log.Config{Level: slog.LevelWarn}))
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	var observer status.Observer
	if askShowSteps {
		observer = func(ev status.Event) {
			fmt.Printf("[%s] step %d: %s\n", ev.State, ev.Step, ev.Description)
		}
	}

	result := a.Engine.Answer(ctx, orchestrator.Request{
		Query:     query,
		SessionID: askSessionID,
	}, observer)

	fmt.Println(result.Response)
	if result.SessionID != "" {
		fmt.Printf("\nsession: %s\n", result.SessionID)
	}
	if !result.Success {
		return fmt.Errorf("query failed after %dms", result.ExecutionTimeMs)
	}
	return nil
}
