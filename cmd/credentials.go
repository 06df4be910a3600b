package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dt-pm-tools/jira-loader/internal/config"
	"github.com/dt-pm-tools/jira-loader/internal/credential"
	"github.com/dt-pm-tools/jira-loader/internal/loader"
	"github.com/spf13/cobra"
)

var (
	serverFlag     string
	usernameFlag   string
	tokenFlag      string
	backendFlag    string
	apiVersionFlag int
)

// openKeyring is swapped out in tests.
var openKeyring = credential.Open

func addConnectionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serverFlag, "server", "", "JIRA server URL (default $"+config.EnvServerURL+")")
	cmd.Flags().StringVar(&usernameFlag, "username", "", "JIRA username / email (default $"+config.EnvUsername+")")
	cmd.Flags().StringVar(&tokenFlag, "token", "", "JIRA API token (default $"+config.EnvAPIToken+")")
	cmd.Flags().StringVar(&backendFlag, "backend", "", "client backend: rest or go-jira (default from config)")
	cmd.Flags().IntVar(&apiVersionFlag, "api-version", 0, "JIRA REST API version, 2 or 3 (default from config)")
}

// explicitCredentials combines flags with the loaded config. Flags win;
// config values already carry env overrides. A token kept in the keyring
// is only consulted when nothing else supplies one.
func explicitCredentials() loader.Credentials {
	creds := loader.Credentials{
		ServerURL: firstNonEmpty(serverFlag, appConfig.URL),
		Username:  firstNonEmpty(usernameFlag, appConfig.Username),
		APIToken:  firstNonEmpty(tokenFlag, appConfig.Token),
	}

	if creds.APIToken == "" && appConfig.TokenSource == config.TokenSourceKeyring && creds.ServerURL != "" && creds.Username != "" {
		store, err := openKeyring()
		if err != nil {
			slog.Warn("keyring unavailable", "error", err)
			return creds
		}
		token, err := store.Get(credential.TokenKey(creds.ServerURL, creds.Username))
		switch {
		case errors.Is(err, credential.ErrNotFound):
			slog.Debug("no token in keyring", "server", creds.ServerURL, "username", creds.Username)
		case err != nil:
			slog.Warn("reading token from keyring", "error", err)
		default:
			creds.APIToken = token
		}
	}
	return creds
}

func dialOptions(verify bool) []loader.DialOption {
	timeout := time.Duration(appConfig.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = config.DefaultTimeoutSeconds * time.Second
	}
	apiVersion := appConfig.APIVersion
	if apiVersionFlag != 0 {
		apiVersion = apiVersionFlag
	}
	return []loader.DialOption{
		loader.WithBackend(firstNonEmpty(backendFlag, appConfig.Backend)),
		loader.WithAPIVersion(apiVersion),
		loader.WithVerify(verify),
		loader.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
}

func validateAPIVersion() error {
	if apiVersionFlag != 0 && apiVersionFlag != 2 && apiVersionFlag != 3 {
		return fmt.Errorf("--api-version must be 2 or 3")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
