package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	debug     bool
	logFile   string
	appConfig config.Config
	logCloser io.Closer
	version   = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "jira-loader",
	Short: "Load JIRA issues as documents for an indexing pipeline",
	Long: `Runs a JQL query against JIRA and turns every matching issue into a
document: a text body (summary, description, comments) plus metadata
(source, issue_key, status, reporter, assignee, created_at, updated_at).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closer, err := telemetry.InitLogger(cmd.ErrOrStderr(), debug, logFile)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.jira-loader.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also append JSON logs to this file")
}

// loadConfig loads and validates configuration. Commands that need JIRA access call this.
func loadConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w\nRun 'jira-loader config' to fix it", err)
	}
	appConfig = cfg
	return nil
}
