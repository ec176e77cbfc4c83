package sharepoint

import (
	"context"
	"os"
	"time"

	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/microsoft"
)

// AccessToken is a time-limited bearer credential. It is replaced, never
// mutated, when refreshed.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenProvider supplies a bearer token and its expiry on demand.
// The transport decides when a fresh one is needed.
type TokenProvider interface {
	Token(ctx context.Context) (AccessToken, error)
}

// ClientCredentialsProvider obtains tokens for a service principal through
// the Azure AD client credentials flow.
type ClientCredentialsProvider struct {
	config clientcredentials.Config
}

// NewClientCredentialsProvider configures the client credentials flow for
// the given tenant, reading the service principal from AZURE_APP_ID and
// AZURE_PASSWORD.
func NewClientCredentialsProvider(tenantID string) *ClientCredentialsProvider {
	return &ClientCredentialsProvider{
		config: clientcredentials.Config{
			ClientID:     os.Getenv("AZURE_APP_ID"),
			ClientSecret: os.Getenv("AZURE_PASSWORD"),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
			TokenURL:     microsoft.AzureADEndpoint(tenantID).TokenURL,
		},
	}
}

func (p *ClientCredentialsProvider) Token(ctx context.Context) (AccessToken, error) {
	token, err := p.config.TokenSource(ctx).Token()
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Value: token.AccessToken, ExpiresAt: token.Expiry}, nil
}
