package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fleettrack-service/internal/domain/entity"
	"fleettrack-service/pkg/logger"

	"golang.org/x/oauth2"
)

// TelemetryOAuth handles the credential exchange with the telemetry provider
type TelemetryOAuth struct {
	config   *oauth2.Config
	username string
	password string
	logger   logger.Logger
}

// NewTelemetryOAuth creates a new telemetry OAuth handler
func NewTelemetryOAuth(clientID, clientSecret, tokenURL string, scopes []string, username, password string, logger logger.Logger) *TelemetryOAuth {
	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Scopes: scopes,
	}

	return &TelemetryOAuth{
		config:   config,
		username: username,
		password: password,
		logger:   logger,
	}
}

// Authenticate performs the password grant. Any failure is reported as
// entity.ErrUnauthenticated so callers can tell it apart from missing data.
func (o *TelemetryOAuth) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	token, err := o.config.PasswordCredentialsToken(ctx, o.username, o.password)
	if err != nil {
		return nil, fmt.Errorf("%w: password grant: %v", entity.ErrUnauthenticated, err)
	}
	return token, nil
}

// GetTokenSource returns the session token source used by the telemetry client
func (o *TelemetryOAuth) GetTokenSource(ctx context.Context) *Session {
	return &Session{ctx: ctx, oauth: o}
}

// TokenToJSON converts a token to JSON
func (o *TelemetryOAuth) TokenToJSON(token *oauth2.Token) (string, error) {
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Session is an oauth2.TokenSource that keeps the provider session alive.
// An expired token is refreshed; when the refresh is rejected the session
// authenticates again with the configured credentials.
type Session struct {
	ctx   context.Context
	oauth *TelemetryOAuth

	mu    sync.Mutex
	token *oauth2.Token
}

// Token returns a valid access token
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid() {
		return s.token, nil
	}

	if s.token != nil && s.token.RefreshToken != "" {
		stale := &oauth2.Token{
			RefreshToken: s.token.RefreshToken,
			Expiry:       time.Now(), // Force refresh
		}
		token, err := s.oauth.config.TokenSource(s.ctx, stale).Token()
		if err == nil {
			s.token = token
			return token, nil
		}
		s.oauth.logger.Warn("Telemetry token refresh failed, re-authenticating", "error", err)
	}

	token, err := s.oauth.Authenticate(s.ctx)
	if err != nil {
		s.token = nil
		return nil, err
	}
	s.token = token
	return token, nil
}

// Invalidate expires the cached access token, keeping the refresh token.
// The provider rejecting a token we still considered valid lands here.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil {
		return
	}
	expired := *s.token
	expired.AccessToken = ""
	expired.Expiry = time.Now().Add(-time.Minute)
	s.token = &expired
}
