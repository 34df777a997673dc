package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/ashureev/deepcode-chat/internal/archive"
	"github.com/spf13/cobra"
)

const lastMessagePreview = 48

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored chat sessions of a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}

			repo, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			sessions, err := repo.ListChatSessions(cmd.Context(), userID)
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, warnStyle.Render("No sessions found for "+userID))
				return nil
			}

			fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("%d session(s)", len(sessions))))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, s := range sessions {
				download := "-"
				if s.HasArchive() {
					download = s.ArchiveName()
				}
				last := ""
				if m, ok := s.LastMessage(); ok {
					last = archive.Truncate(strings.Join(strings.Fields(m.Content), " "), lastMessagePreview)
				}
				fmt.Fprintf(w, "%s\t%s\t%d msgs\t%s\t%s\t%s\n",
					idStyle.Render(s.SessionID),
					stageStyle.Render(string(s.Stage)),
					len(s.Messages),
					dateStyle.Render(s.UpdatedAt.Local().Format("2006-01-02 15:04")),
					download,
					last,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "Anonymous user ID (the deepcode_anon_id cookie)")
	return cmd
}
