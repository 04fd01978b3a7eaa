package entraid

import (
	"context"
	"fmt"

	"golang.org/x/oauth2/clientcredentials"
)

// GraphTokenSource resolves Entra ID tokens via the OAuth2 client-
// credentials flow, scoped to Microsoft Graph.
type GraphTokenSource struct {
	config *clientcredentials.Config
}

// NewGraphTokenSource builds a token source for the given Entra ID tenant
// and app registration.
func NewGraphTokenSource(tenantID, clientID, clientSecret string) *GraphTokenSource {
	return &GraphTokenSource{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
			Scopes:       []string{"https://graph.microsoft.com/.default"},
		},
	}
}

func (t *GraphTokenSource) Token(ctx context.Context) (string, error) {
	tok, err := t.config.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("microsoft graph token exchange: %w", err)
	}
	return tok.AccessToken, nil
}
