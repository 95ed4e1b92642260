package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/andresmejia3/itemwatch/internal/config"
	"github.com/andresmejia3/itemwatch/internal/descriptions"
	"github.com/andresmejia3/itemwatch/internal/store"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	// DB is the optional description store shared by subcommands. It is nil
	// unless a connection string was given.
	DB *store.Store

	cfg = config.Load()

	dbURL     string
	logLevel  string
	descPath  string
	sourceURL string

	// sessionID tags the logs and live snapshots of one process.
	sessionID string
)

// Version is the application version.
const Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "itemwatch <catalog_root>",
	Short:   "Watch the screen for known item sprites and show their descriptions",
	Long:    "Captures the screen, matches every sprite under <catalog_root> against it in parallel, and keeps the descriptions of recently seen items on the terminal.",
	Version: Version, // This enables the --version flag
	Args:    cobra.ExactArgs(1),
	// Execute reports the error itself; cobra still prints usage on bad arguments.
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(logLevel); err != nil {
			return err
		}

		if dbURL == "" {
			return nil
		}
		var err error
		// Use the command's context (which will be cancellable) for the connection
		DB, err = store.New(cmd.Context(), dbURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWatch(cmd.Context(), args[0], watchOpts)
	},
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// This tells Cobra not to print the version in the help text, which is cleaner.
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", cfg.DatabaseURL, "PostgreSQL connection string; descriptions are kept in the database instead of the cache file when set")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&descPath, "descriptions", cfg.DescriptionPath, "Path of the description cache file")
	rootCmd.PersistentFlags().StringVar(&sourceURL, "source-url", cfg.SourceURL, "Page to scrape descriptions from on a cache miss")
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	// Logs go to stderr; stdout belongs to the display.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
	slog.SetDefault(logger.With("session", sessionID[:8]))
	return nil
}

// newLoader builds the description loader from the persistent flags,
// backed by the database when one is connected.
func newLoader() *descriptions.Loader {
	l := &descriptions.Loader{
		CachePath: descPath,
		SourceURL: sourceURL,
		Client:    &http.Client{Timeout: 30 * time.Second},
	}
	if DB != nil {
		l.Repo = DB
	}
	return l
}
