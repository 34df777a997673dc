package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/deepcode-chat/internal/config"
	"github.com/ashureev/deepcode-chat/internal/store"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

type rootOptions struct {
	verbose bool
	dbPath  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "deepcode",
		Short: "Plan projects and inspect DeepCode chat sessions",
		Long: `deepcode works against the same configuration and database as the chat server.

Examples:
  deepcode plan "a REST API for a bookstore with JWT auth"
  deepcode sessions --user anon_0123...
  deepcode export --user anon_0123... --session tab-1 --format yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			_ = godotenv.Load()
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the SQLite database (defaults to DB_PATH)")

	root.AddCommand(
		newPlanCmd(opts),
		newSessionsCmd(opts),
		newExportCmd(opts),
	)
	return root
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.DBPath = o.dbPath
	}
	return cfg, nil
}

func (o *rootOptions) openStore() (*store.SQLiteStore, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.DBPath, err)
	}
	return store.NewSQLite(cfg.DBPath)
}
