package cmd

import (
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	_ "github.com/dt-pm-tools/jira-loader/internal/backend"
	"github.com/dt-pm-tools/jira-loader/internal/loader"
	"github.com/dt-pm-tools/jira-loader/internal/sink"
	"github.com/dt-pm-tools/jira-loader/internal/telemetry"
)

var (
	jqlFlag     string
	formatFlag  string
	outFlag     string
	limitFlag   int
	noVerify    bool
	metricsFile string
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load issues matching a JQL query as documents",
	Long: `Runs one JQL search for every matching issue and writes one document per
issue, in the order JIRA returned them.

Output formats: jsonl and yaml stream to stdout (or --out FILE); markdown
writes <KEY>.md files into the --out directory; sqlite upserts rows into the
--out database.`,
	Example: `  jira-loader load --jql 'project = OPS AND updated >= -7d'
  jira-loader load --jql 'project = OPS' --format sqlite --out ops.db`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := validateAPIVersion(); err != nil {
			return err
		}

		jql := firstNonEmpty(jqlFlag, appConfig.JQL)
		if jql == "" {
			return fmt.Errorf("--jql is required (or set jql in the config file)")
		}
		if limitFlag < 0 {
			return fmt.Errorf("--limit must not be negative")
		}

		ctx := cmd.Context()

		reg := prometheus.NewRegistry()
		metrics, err := telemetry.NewMetrics(reg)
		if err != nil {
			return err
		}

		opts := append(dialOptions(!noVerify), loader.WithLoaderOptions(loader.WithMetrics(metrics)))
		ld, err := loader.FromCredentials(ctx, jql, explicitCredentials(), opts...)
		if err != nil {
			return err
		}

		out, err := sink.Open(formatFlag, outFlag, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		written := 0
		for doc, err := range ld.Documents(ctx) {
			if err != nil {
				out.Close()
				return err
			}
			if err := out.Write(ctx, doc); err != nil {
				out.Close()
				return err
			}
			written++
			if limitFlag > 0 && written >= limitFlag {
				break
			}
		}

		if err := out.Close(); err != nil {
			return fmt.Errorf("closing output: %w", err)
		}
		slog.Info("wrote documents", "count", written, "format", formatFlag, "out", outFlag)

		if metricsFile != "" {
			if err := telemetry.WriteTextfile(reg, metricsFile); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().StringVarP(&jqlFlag, "jql", "q", "", "JQL query (default from config)")
	loadCmd.Flags().StringVarP(&formatFlag, "format", "f", sink.FormatJSONL, "output format: jsonl, yaml, markdown, sqlite")
	loadCmd.Flags().StringVarP(&outFlag, "out", "o", "", "output file, directory or database (default stdout for streams)")
	loadCmd.Flags().IntVar(&limitFlag, "limit", 0, "stop after writing N documents (0 = all)")
	loadCmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip the credential check before searching")
	loadCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")
	addConnectionFlags(loadCmd)
	rootCmd.AddCommand(loadCmd)
}
