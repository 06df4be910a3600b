package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dt-pm-tools/jira-loader/internal/loader"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Check JIRA credentials and print the authenticated user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := validateAPIVersion(); err != nil {
			return err
		}

		ld, err := loader.FromCredentials(cmd.Context(), "", explicitCredentials(), dialOptions(false)...)
		if err != nil {
			return err
		}

		v, ok := ld.Client().(loader.Verifier)
		if !ok {
			return fmt.Errorf("backend cannot verify credentials")
		}
		name, err := v.Myself(cmd.Context())
		if err != nil {
			return fmt.Errorf("verifying credentials: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Authenticated as %s\n", name)
		return nil
	},
}

func init() {
	addConnectionFlags(whoamiCmd)
	rootCmd.AddCommand(whoamiCmd)
}
