package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"ACME_PROD_CLIENT_ID": "onboarder",
		"ACME_PROD_SECRET": "s3cret",
		"OTHER_CLIENT_ID": "other"
	}`), 0o600))

	secrets, err := LoadSecrets(path)
	require.NoError(t, err)

	id, secret, err := secrets.CredentialsFor("acme-prod")
	require.NoError(t, err)
	assert.Equal(t, "onboarder", id)
	assert.Equal(t, "s3cret", secret)
}

func TestSecrets_CredentialsFor_Missing(t *testing.T) {
	secrets := Secrets{"ACME_PROD_CLIENT_ID": "onboarder"}

	_, _, err := secrets.CredentialsFor("acme-prod")
	require.ErrorIs(t, err, ErrMissingCredentials)

	_, _, err = secrets.CredentialsFor("unknown")
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestLoadSecrets_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err := LoadSecrets(path)
	require.Error(t, err)
}

func TestLoadSecrets_MissingFile(t *testing.T) {
	_, err := LoadSecrets(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}
