package authservice

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/classpoint/gatehouse/internal/apiclient"
	"github.com/classpoint/gatehouse/internal/config"
)

// GoogleSSO signs users in through Google. The authorization code is
// exchanged locally, then the Google access token is presented to the school
// API, which answers with the same payload as a password login.
type GoogleSSO struct {
	oauthConfig *oauth2.Config
	service     *Service
}

// NewGoogleSSO creates the Google sign-in flow
func NewGoogleSSO(cfg config.GoogleConfig, service *Service) *GoogleSSO {
	return &GoogleSSO{
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
			Endpoint: google.Endpoint,
		},
		service: service,
	}
}

// AuthURL generates the Google authorization URL for the given state
func (g *GoogleSSO) AuthURL(state string) string {
	return g.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Login exchanges the callback code and signs in against the school API,
// with the same persistence contract as Service.Login.
func (g *GoogleSSO) Login(ctx context.Context, code string) (*User, error) {
	token, err := g.oauthConfig.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	data, err := g.service.client.Request(ctx, "/auth/google", apiclient.Options{
		Method: http.MethodPost,
		Body:   map[string]string{"accessToken": token.AccessToken},
	})
	if err != nil {
		return nil, err
	}

	return g.service.persistSession(data)
}
