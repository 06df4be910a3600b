package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	env := MapLookup(map[string]string{
		EnvServerURL: "https://env.example.com",
		EnvUsername:  "",
	})

	t.Run("explicit wins over env", func(t *testing.T) {
		v, err := Resolve("server URL", "https://arg.example.com", EnvServerURL, env)
		require.NoError(t, err)
		assert.Equal(t, "https://arg.example.com", v)
	})

	t.Run("falls back to env", func(t *testing.T) {
		v, err := Resolve("server URL", "", EnvServerURL, env)
		require.NoError(t, err)
		assert.Equal(t, "https://env.example.com", v)
	})

	t.Run("empty env value is unset", func(t *testing.T) {
		_, err := Resolve("username", "", EnvUsername, env)
		require.Error(t, err)

		var missing *MissingFieldError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "username", missing.Field)
		assert.Equal(t, EnvUsername, missing.EnvVar)
		assert.ErrorIs(t, err, ErrMissingCredential)
		assert.Contains(t, err.Error(), EnvUsername)
	})

	t.Run("absent env var", func(t *testing.T) {
		_, err := Resolve("API token", "", EnvAPIToken, env)
		assert.ErrorIs(t, err, ErrMissingCredential)
	})
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://file.example.com\nusername: file-user\njql: project = P\n"), 0600))

	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvServerURL, "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-user", cfg.Username)
	assert.Equal(t, "project = P", cfg.JQL)
	assert.Equal(t, "rest", cfg.Backend)
	assert.Equal(t, 2, cfg.APIVersion)
	assert.Equal(t, DefaultTimeoutSeconds, cfg.TimeoutSeconds)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, TokenSourceFile, cfg.TokenSource)
}

func TestLoadFile_IgnoresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: https://file.example.com\nusername: file-user\n"), 0600))

	t.Setenv(EnvUsername, "env-user")
	t.Setenv(EnvAPIToken, "env-secret")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-user", cfg.Username)
	assert.Empty(t, cfg.Token)
	assert.Equal(t, "rest", cfg.Backend)
}

func TestLoadFile_Missing(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.APIVersion)
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("url: [unclosed\n"), 0600))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Config{APIVersion: 3}.Validate())
	assert.Error(t, Config{APIVersion: 1}.Validate())
	assert.Error(t, Config{TokenSource: "vault"}.Validate())
	assert.Error(t, Config{TimeoutSeconds: -1}.Validate())
}

func TestSave_KeyringOmitsToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	cfg := Config{
		URL:         "https://x.example.com",
		Username:    "me",
		Token:       "secret",
		TokenSource: TokenSourceKeyring,
	}
	require.NoError(t, Save(cfg, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret")
	assert.Contains(t, string(data), "token_source: keyring")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
