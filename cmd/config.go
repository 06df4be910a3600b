package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/credential"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var useKeyring bool

// readPassword reads a line without echo when stdin is a terminal, and
// falls back to the shared line reader otherwise.
func readPassword(in io.Reader, lines *bufio.Reader) ([]byte, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return term.ReadPassword(int(f.Fd()))
	}
	line, err := lines.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return []byte(line), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configure JIRA connection settings",
	Long: `Interactively set up the JIRA URL, username, API token and a default JQL
query. Settings are saved to ~/.jira-loader.yaml. With --keyring the token
is stored in the OS keyring instead of the file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		out := cmd.OutOrStdout()
		reader := bufio.NewReader(in)

		// Existing file values are the defaults; env overrides stay out of it.
		existing, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}

		prompt := func(label, current, example string) (string, error) {
			switch {
			case current != "":
				fmt.Fprintf(out, "%s [%s]: ", label, current)
			case example != "":
				fmt.Fprintf(out, "%s (e.g., %s): ", label, example)
			default:
				fmt.Fprintf(out, "%s: ", label)
			}
			line, err := reader.ReadString('\n')
			if err != nil && err != io.EOF {
				return "", fmt.Errorf("reading %s: %w", label, err)
			}
			if line = strings.TrimSpace(line); line != "" {
				return line, nil
			}
			return current, nil
		}

		url, err := prompt("JIRA URL", existing.URL, "https://your-org.atlassian.net")
		if err != nil {
			return err
		}
		username, err := prompt("Username / email", existing.Username, "")
		if err != nil {
			return err
		}

		// Token (masked input)
		fmt.Fprint(out, "API Token (input hidden): ")
		tokenBytes, err := readPassword(in, reader)
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("reading token: %w", err)
		}
		token := strings.TrimSpace(string(tokenBytes))
		if token == "" {
			token = existing.Token
		}

		jql, err := prompt("Default JQL", existing.JQL, "project = OPS ORDER BY updated DESC")
		if err != nil {
			return err
		}

		cfg := existing
		cfg.URL = url
		cfg.Username = username
		cfg.Token = token
		cfg.JQL = jql
		if useKeyring {
			cfg.TokenSource = config.TokenSourceKeyring
		}

		if url == "" || username == "" {
			return fmt.Errorf("JIRA URL and username are required")
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if cfg.TokenSource == config.TokenSourceKeyring && token != "" {
			store, err := openKeyring()
			if err != nil {
				return err
			}
			if err := store.Set(credential.TokenKey(url, username), token); err != nil {
				return err
			}
			fmt.Fprintln(out, "Token saved to the OS keyring")
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}

		if err := config.Save(cfg, path); err != nil {
			return err
		}

		fmt.Fprintf(out, "Configuration saved to %s\n", path)
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&useKeyring, "keyring", false, "store the API token in the OS keyring")
	rootCmd.AddCommand(configCmd)
}
