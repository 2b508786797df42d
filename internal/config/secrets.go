package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMissingCredentials indicates the secrets file does not contain a
// client id or secret for the requested account.
var ErrMissingCredentials = errors.New("missing controller credentials")

// Secrets is the parsed secrets file: a flat map of uppercased keys to
// values, shared by every controller account the file covers.
type Secrets map[string]string

// LoadSecrets parses the JSON secrets file at path.
func LoadSecrets(path string) (Secrets, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading secrets file: %w", err)
	}
	var secrets Secrets
	if err := json.Unmarshal(raw, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

// CredentialsFor returns the API client id and secret for an account. Keys
// are derived from the account name uppercased with dashes folded to
// underscores, so account "acme-prod" reads ACME_PROD_CLIENT_ID and
// ACME_PROD_SECRET.
func (s Secrets) CredentialsFor(account string) (clientID, clientSecret string, err error) {
	key := secretKey(account)
	clientID = s[key+"_CLIENT_ID"]
	clientSecret = s[key+"_SECRET"]
	if clientID == "" || clientSecret == "" {
		return "", "", fmt.Errorf("account %q: %w", account, ErrMissingCredentials)
	}
	return clientID, clientSecret, nil
}

func secretKey(account string) string {
	return strings.ToUpper(strings.ReplaceAll(account, "-", "_"))
}
