package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"strings"

	"nrega-scraper/internal/model"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const EnvVar = "GOOGLE_CREDENTIALS_BASE64"

const SheetsScope = "https://www.googleapis.com/auth/spreadsheets"

// ServiceAccount is the subset of a google service account key the scraper
// cares about.
type ServiceAccount struct {
	Type         string `json:"type"`
	ProjectID    string `json:"project_id"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	ClientEmail  string `json:"client_email"`
	TokenURI     string `json:"token_uri"`
}

type Credentials struct {
	Account ServiceAccount
	raw     []byte
}

// FromEnv decodes the service account key held in GOOGLE_CREDENTIALS_BASE64.
func FromEnv() (Credentials, error) {
	encoded := os.Getenv(EnvVar)
	if strings.TrimSpace(encoded) == "" {
		return Credentials{}, model.ConfigError{
			Reason:  "credentials not set",
			Subject: EnvVar,
		}
	}
	return Decode(encoded)
}

func decodeBase64(encoded string) ([]byte, error) {
	// keys pasted into dashboards tend to pick up line breaks
	cleaned := strings.Join(strings.Fields(encoded), "")
	out, err := base64.StdEncoding.DecodeString(cleaned)
	if err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
}

// Decode parses and validates a base64 encoded service account key.
func Decode(encoded string) (Credentials, error) {
	raw, err := decodeBase64(encoded)
	if err != nil {
		return Credentials{}, model.ConfigError{
			Reason:  "credentials are not valid base64",
			Subject: EnvVar,
			Err:     err,
		}
	}

	var account ServiceAccount
	err = json.Unmarshal(raw, &account)
	if err != nil {
		return Credentials{}, model.ConfigError{
			Reason:  "credentials are not valid json",
			Subject: EnvVar,
			Err:     err,
		}
	}

	creds := Credentials{Account: account, raw: raw}
	err = creds.Validate()
	if err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (c Credentials) Validate() error {
	var missing []string
	if c.Account.Type == "" {
		missing = append(missing, "type")
	}
	if c.Account.ClientEmail == "" {
		missing = append(missing, "client_email")
	}
	if c.Account.PrivateKey == "" {
		missing = append(missing, "private_key")
	}
	if len(missing) > 0 {
		return model.ConfigError{
			Reason:  "credentials missing fields " + strings.Join(missing, ", "),
			Subject: EnvVar,
		}
	}
	if c.Account.Type != "service_account" {
		return model.ConfigError{
			Reason:  "credentials are not a service account key (type " + c.Account.Type + ")",
			Subject: EnvVar,
		}
	}
	return nil
}

// TokenSource returns a self refreshing token source for the given scopes,
// SheetsScope when none are given.
func (c Credentials) TokenSource(ctx context.Context, scopes ...string) (oauth2.TokenSource, error) {
	if len(scopes) == 0 {
		scopes = []string{SheetsScope}
	}
	cfg, err := google.JWTConfigFromJSON(c.raw, scopes...)
	if err != nil {
		return nil, model.ConfigError{
			Reason:  "failed to build jwt config",
			Subject: EnvVar,
			Err:     err,
		}
	}
	return cfg.TokenSource(ctx), nil
}

// HTTPClient returns an *http.Client that authorizes every request with the
// service account.
func (c Credentials) HTTPClient(ctx context.Context, scopes ...string) (*http.Client, error) {
	ts, err := c.TokenSource(ctx, scopes...)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}
