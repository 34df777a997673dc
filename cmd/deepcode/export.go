package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ashureev/deepcode-chat/internal/export"
	"github.com/spf13/cobra"
)

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		userID    string
		sessionID string
		format    string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a stored chat transcript",
		Long:  fmt.Sprintf("Write a stored chat transcript in one of the supported formats: %v.", export.Formats()),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || sessionID == "" {
				return errors.New("--user and --session are required")
			}

			exp, err := export.Get(format)
			if err != nil {
				return err
			}

			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			sess, err := repo.GetChatSession(cmd.Context(), userID, sessionID)
			if err != nil {
				return fmt.Errorf("load session: %w", err)
			}
			if sess == nil {
				return fmt.Errorf("session %s not found for user %s", sessionID, userID)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				w = f
			}

			if err := exp.Export(sess, w); err != nil {
				return fmt.Errorf("export session: %w", err)
			}
			if output != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), dateStyle.Render("wrote "+output))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Anonymous user ID")
	cmd.Flags().StringVar(&sessionID, "session", "", "Tab session ID")
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Output format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file instead of stdout")
	return cmd
}
