package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/emitter/pkg/emitter"
	"github.com/randalmurphal/emitter/pkg/emitter/config"
)

func newValidateCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:     "validate <config>",
		Short:   "Check a YAML or JSON config file",
		Example: "  emitterctl validate emitter.yaml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if _, err := emitter.OptionsFromSettings(s, cfg.logger); err != nil {
				return err
			}
			cfg.logger.Info("config valid", slog.String("path", args[0]), slog.Int("bindings", len(s.Bindings)))
			return printSettings(cmd, s)
		},
	}
}

func printSettings(cmd *cobra.Command, s config.Settings) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "error_policy: %s\n", s.ErrorPolicy)
	fmt.Fprintf(out, "metrics: %t\ntracing: %t\n", s.Metrics, s.Tracing)
	fmt.Fprintf(out, "log_level: %s\n", s.LogLevel)
	driver := s.DeadLetter.Driver
	if driver == "" {
		driver = "none"
	}
	fmt.Fprintf(out, "dead_letter: %s %s\n", driver, s.DeadLetter.Path)
	fmt.Fprintf(out, "bindings: %d\n", len(s.Bindings))
	if len(s.Bindings) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EVENT\tHANDLER\tONCE\tFILTER")
	for _, b := range s.Bindings {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", b.Event, b.Handler, b.Once, b.Filter)
	}
	return tw.Flush()
}
