package azure

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsTokenSource resolves Azure AD tokens via the OAuth2
// client-credentials flow, scoped to the Azure Resource Manager audience.
type ClientCredentialsTokenSource struct {
	config *clientcredentials.Config
}

// NewClientCredentialsTokenSource builds a token source for the given Azure
// AD tenant and app registration.
func NewClientCredentialsTokenSource(tenantID, clientID, clientSecret string) *ClientCredentialsTokenSource {
	return &ClientCredentialsTokenSource{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
			Scopes:       []string{managementEndpoint + "/.default"},
		},
	}
}

func (t *ClientCredentialsTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := t.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("azure ad token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
