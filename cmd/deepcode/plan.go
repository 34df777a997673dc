package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/deepcode-chat/internal/engine"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <requirements>",
		Short: "Generate a technical implementation plan",
		Long:  `Run the configured planning engine on the given requirements and print the plan.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			eng, err := engine.New(cfg, slog.Default())
			if err != nil {
				return fmt.Errorf("connect to %s engine: %w", cfg.EngineMode(), err)
			}
			defer eng.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Engine.PlanTimeout)
			defer cancel()

			requirements := strings.Join(args, " ")
			plan, err := eng.RunChatPlanningAgent(ctx, requirements)
			if err != nil {
				return fmt.Errorf("planning failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, headerStyle.Render("Technical Implementation Plan"))
			fmt.Fprintln(out, dateStyle.Render("engine: "+cfg.EngineMode()))
			fmt.Fprintln(out)
			fmt.Fprintln(out, plan)
			return nil
		},
	}
}
