package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wayfarer0/wayfarer/internal/config"
	"github.com/wayfarer0/wayfarer/internal/database"
	"github.com/wayfarer0/wayfarer/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Inspect stored conversation sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSessionStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			sessions, err := store.ListSessions(ctx, 50, 0)
			if err != nil {
				return fmt.Errorf("listing sessions: %w", err)
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  %s  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04"), s.Title)
			}
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSessionStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
			msgs, err := store.RecentMessages(ctx, args[0], 200)
			if err != nil {
				return fmt.Errorf("loading messages: %w", err)
			}
			if len(msgs) == 0 {
				fmt.Println("no messages")
				return nil
			}
			for _, m := range msgs {
				fmt.Printf("[%s] %s\n", m.Role, m.Content)
			}
			return nil
		})
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	rootCmd.AddCommand(sessionsCmd)
}

// withSessionStore connects to the database just long enough to run fn.
// The sessions commands do not need the model stack.
func withSessionStore(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.ConnString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, session.NewStore(session.NewQueries(pool), pool, nil))
}
