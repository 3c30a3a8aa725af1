package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Matthias0x44/RyUnfair/pkg/logger"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// GmailOAuth holds the offline credentials used to send mail as the service account
type GmailOAuth struct {
	config       *oauth2.Config
	refreshToken string
	logger       logger.Logger
}

// NewGmailOAuth creates a Gmail OAuth handler limited to the send scope
func NewGmailOAuth(clientID, clientSecret, refreshToken string, logger logger.Logger) *GmailOAuth {
	return NewGmailOAuthWithEndpoint(clientID, clientSecret, refreshToken, google.Endpoint, logger)
}

// NewGmailOAuthWithEndpoint is NewGmailOAuth against a custom token endpoint
func NewGmailOAuthWithEndpoint(clientID, clientSecret, refreshToken string, endpoint oauth2.Endpoint, logger logger.Logger) *GmailOAuth {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{gmail.GmailSendScope},
	}

	return &GmailOAuth{
		config:       config,
		refreshToken: refreshToken,
		logger:       logger,
	}
}

// WithRedirectURL sets the callback used by the consent flow
func (o *GmailOAuth) WithRedirectURL(u string) *GmailOAuth {
	o.config.RedirectURL = u
	return o
}

// TokenSource returns a refreshing token source for the Gmail API
func (o *GmailOAuth) TokenSource(ctx context.Context) oauth2.TokenSource {
	token := &oauth2.Token{
		RefreshToken: o.refreshToken,
		Expiry:       time.Now(), // Force refresh
	}
	return o.config.TokenSource(ctx, token)
}

// AuthURL is the consent page an operator visits to mint a refresh token
func (o *GmailOAuth) AuthURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for a token
func (o *GmailOAuth) ExchangeCode(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	if token.RefreshToken == "" {
		o.logger.Warn("Token exchange returned no refresh token; revoke prior consent and retry")
	}
	return token, nil
}

// TokenToJSON converts a token to indented JSON
func TokenToJSON(token *oauth2.Token) (string, error) {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
