package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tracklane/tracklane/internal/commands"
	"github.com/tracklane/tracklane/internal/config"
	"github.com/tracklane/tracklane/internal/mail"
	"github.com/tracklane/tracklane/internal/session"
	"github.com/tracklane/tracklane/internal/storage"
	"github.com/tracklane/tracklane/internal/storage/sqlite"
	"github.com/tracklane/tracklane/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	configPath string
	teamID     string
	jsonOutput bool
	verbose    bool

	cfg   *config.Config
	store storage.Store
	orch  *commands.Orchestrator
	sess  *session.Manager

	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:           "tracklane",
	Short:         "Team issue tracking with a conversational assistant",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		if err := telemetry.Init(rootCtx, "tracklane", Version); err != nil {
			return err
		}

		store, err = sqlite.Open(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}

		var mailer mail.Mailer = mail.Noop{}
		if cfg.ResendAPIKey != "" {
			mailer = mail.NewResend(cfg.ResendAPIKey, cfg.MailFrom, cfg.BaseURL)
		}
		orch = commands.New(store, commands.WithMailer(mailer))
		sess = session.NewManager(store, slog.Default())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if store != nil {
			_ = store.Close()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		telemetry.Shutdown(ctx)
	},
}

// actor builds the caller identity from the environment. The CLI is a
// single-user surface; a real deployment resolves this upstream.
func actor() commands.Actor {
	a := commands.Actor{
		UserID:      os.Getenv("TRACKLANE_USER_ID"),
		DisplayName: os.Getenv("TRACKLANE_USER_NAME"),
		Email:       os.Getenv("TRACKLANE_USER_EMAIL"),
	}
	if a.UserID == "" {
		a.UserID = "local"
	}
	if a.DisplayName == "" {
		if u := os.Getenv("USER"); u != "" {
			a.DisplayName = u
		} else {
			a.DisplayName = a.UserID
		}
	}
	return a
}

func requireTeam() error {
	if teamID == "" {
		return fmt.Errorf("a team is required: pass --team or set TRACKLANE_TEAM_ID")
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&teamID, "team", os.Getenv("TRACKLANE_TEAM_ID"), "Team id (default: $TRACKLANE_TEAM_ID)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug output")
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := rootCmd.ExecuteContext(rootCtx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
