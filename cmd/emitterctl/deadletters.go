package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emitter/pkg/emitter/deadletter"
)

func newDeadLettersCmd(cfg *cliConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletters",
		Aliases: []string{"dl"},
		Short:   "Inspect recorded listener failures",
		Example: "  emitterctl deadletters list --path failures.db\n  emitterctl dl purge --config emitter.yaml --event score",
	}
	cmd.PersistentFlags().StringVar(&cfg.configPath, "config", "", "Config file naming the store")
	cmd.PersistentFlags().StringVar(&cfg.driver, "driver", "", "Store driver: memory|sqlite")
	cmd.PersistentFlags().StringVar(&cfg.path, "path", "", "SQLite database path")

	cmd.AddCommand(
		newListCmd(cfg),
		newCountCmd(cfg),
		newShowCmd(cfg),
		newPurgeCmd(cfg),
	)
	return cmd
}

// withStore opens the store for one command and closes it afterwards.
func withStore(cfg *cliConfig, fn func(deadletter.Store) error) error {
	store, err := cfg.openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newListCmd(cfg *cliConfig) *cobra.Command {
	var q deadletter.Query
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cfg, func(store deadletter.Store) error {
				recs, err := store.List(cmd.Context(), q)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tEVENT\tLISTENER\tONCE\tPANIC\tFAILED_AT\tERROR")
				for _, r := range recs {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%t\t%s\t%s\n",
						r.ID, r.EventName, r.ListenerID, r.Once, r.Panicked,
						r.FailedAt.UTC().Format(time.RFC3339), r.Error)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&q.EventName, "event", "", "Only records for this event")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum records to show (0 = all)")
	return cmd
}

func newCountCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of dead letters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cfg, func(store deadletter.Store) error {
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), n)
				return nil
			})
		},
	}
}

// shownRecord is the JSON shape printed by show. Payload is inlined rather
// than base64-encoded.
type shownRecord struct {
	ID         string          `json:"id"`
	EventName  string          `json:"event"`
	ListenerID uint64          `json:"listener_id"`
	Once       bool            `json:"once"`
	Panicked   bool            `json:"panicked"`
	FailedAt   time.Time       `json:"failed_at"`
	Error      string          `json:"error"`
	Payload    json.RawMessage `json:"payload"`
}

func newShowCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one dead letter as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cfg, func(store deadletter.Store) error {
				r, err := store.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(shownRecord{
					ID:         r.ID,
					EventName:  r.EventName,
					ListenerID: r.ListenerID,
					Once:       r.Once,
					Panicked:   r.Panicked,
					FailedAt:   r.FailedAt.UTC(),
					Error:      r.Error,
					Payload:    json.RawMessage(r.Payload),
				})
			})
		},
	}
}

func newPurgeCmd(cfg *cliConfig) *cobra.Command {
	var event string
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete dead letters for an event, or all of them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cfg, func(store deadletter.Store) error {
				n, err := store.Purge(cmd.Context(), event)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&event, "event", "", "Only purge this event")
	return cmd
}
