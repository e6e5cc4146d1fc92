package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/ehr-agent/internal/config"
	"github.com/ehr/ehr-agent/internal/platform/auth"
	"github.com/ehr/ehr-agent/internal/platform/db"
	"github.com/ehr/ehr-agent/internal/platform/speech"
	"github.com/ehr/ehr-agent/internal/terminal"
	"github.com/ehr/ehr-agent/migrations"
	"github.com/ehr/ehr-agent/pkg/pagination"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "ehr-agent",
		Short:        "EHR consultation agent: SOAP notes, examination advice and drug conflict checks",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(consultCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(reportsCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger writes JSON to w, or human-readable lines in development.
func newLogger(cmd *cobra.Command, w io.Writer, env string) zerolog.Logger {
	level, err := zerolog.ParseLevel(mustString(cmd, "log-level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if env == "development" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// loadConfig loads configuration and, when requireAI is set, refuses to
// continue without a usable API key.
func loadConfig(requireAI bool, logger *zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if requireAI {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		for _, w := range cfg.Warnings() {
			logger.Warn().Msg(w)
		}
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
}

func runServer(cmd *cobra.Command) error {
	logger := newLogger(cmd, os.Stdout, os.Getenv("ENV"))

	cfg, err := loadConfig(true, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger = newLogger(cmd, os.Stdout, cfg.Env)

	ctx := context.Background()
	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to initialize")
		return err
	}
	defer a.Close()

	e := newServer(a)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("auth", cfg.AuthEnabled()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	case <-quit:
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

func consultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consult",
		Short: "Run one consultation interactively in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Logs go to stderr so they do not interleave with the prompts.
			logger := newLogger(cmd, os.Stderr, os.Getenv("ENV"))
			cfg, err := loadConfig(true, &logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var listener terminal.Listener
			noVoice, _ := cmd.Flags().GetBool("no-voice")
			if !noVoice {
				rec, err := speech.NewRecorder(cfg.RecordCommand, cfg.RecordSeconds)
				if err != nil {
					return err
				}
				listener = speech.NewListener(rec, a.transcriber, cfg.RecordingsDir, logger)
			}

			_, err = terminal.New(os.Stdin, os.Stdout, a.orch, listener).Consult(ctx)
			return err
		},
	}
	cmd.Flags().Bool("no-voice", false, "Only offer typed transcript entry")
	return cmd
}

// openMigrator connects to DATABASE_URL. The returned func closes the pool.
func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the report index",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect saved consultation reports",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List saved reports, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			offset, _ := cmd.Flags().GetInt("offset")

			logger := newLogger(cmd, os.Stderr, os.Getenv("ENV"))
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			a, err := buildStorage(ctx, cfg, logger.Level(zerolog.WarnLevel))
			if err != nil {
				return err
			}
			defer a.Close()

			if limit <= 0 || limit > pagination.MaxLimit {
				limit = pagination.DefaultLimit
			}
			if offset < 0 {
				offset = 0
			}
			items, total, err := a.reports.List(ctx, pagination.Params{Limit: limit, Offset: offset})
			if err != nil {
				return err
			}

			fmt.Printf("%-36s %-20s %10s %s\n", "FILE", "CAPTURED AT", "SIZE", "LOCATION")
			fmt.Println(strings.Repeat("-", 100))
			for _, r := range items {
				fmt.Printf("%-36s %-20s %10d %s\n", r.FileName, r.CapturedAt.Format("2006-01-02 15:04:05"), r.Size, r.Location)
			}
			fmt.Printf("\n%d of %d report(s)\n", len(items), total)
			return nil
		},
	}
	listCmd.Flags().Int("limit", pagination.DefaultLimit, "Maximum number of reports to show")
	listCmd.Flags().Int("offset", 0, "Number of reports to skip")
	cmd.AddCommand(listCmd)

	return cmd
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with AUTH_SIGNING_KEY",
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, _ := cmd.Flags().GetString("subject")
			roles, _ := cmd.Flags().GetStringSlice("roles")
			ttl, _ := cmd.Flags().GetDuration("ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return fmt.Errorf("AUTH_SIGNING_KEY is not set")
			}
			token, err := auth.IssueToken(auth.JWTConfig{
				Issuer:     cfg.AuthIssuer,
				Audience:   cfg.AuthAudience,
				SigningKey: []byte(cfg.AuthSigningKey),
			}, subject, roles, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "", "Token subject, usually the clinician's user id")
	cmd.Flags().StringSlice("roles", []string{"physician"}, "Roles to embed")
	cmd.Flags().Duration("ttl", 12*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("subject")
	return cmd
}
