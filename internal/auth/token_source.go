// Package auth yields valid access tokens for the external API, refreshing
// them via OAuth when they approach expiry.
package auth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/voralis/indexwatch/internal/indexer"
)

// Config controls the refresh flow.
type Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	// Leeway is how close to expiry a token is refreshed.
	Leeway time.Duration
}

// Source loads per-property credentials, refreshes them when within the
// leeway of expiry, and persists renewals.
type Source struct {
	store  indexer.TokenStore
	clock  indexer.Clock
	cfg    Config
	oauth  *oauth2.Config
	logger *zap.Logger
}

// New constructs a Source.
func New(store indexer.TokenStore, clock indexer.Clock, cfg Config, logger *zap.Logger) *Source {
	if cfg.Leeway <= 0 {
		cfg.Leeway = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		store: store,
		clock: clock,
		cfg:   cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
		},
		logger: logger,
	}
}

// Token returns a valid access token for the property. A refresh failure
// aborts only the caller's cycle; nothing about other properties is touched.
func (s *Source) Token(ctx context.Context, propertyID string) (string, error) {
	stored, err := s.store.LoadToken(ctx, propertyID)
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}

	now := s.clock.Now()
	if stored.AccessToken != "" && stored.Expiry.After(now.Add(s.cfg.Leeway)) {
		return stored.AccessToken, nil
	}
	if stored.RefreshToken == "" {
		return "", fmt.Errorf("property %s has no refresh token", propertyID)
	}

	refreshed, err := s.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		Expiry:       stored.Expiry,
	}).Token()
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}

	renewed := indexer.StoredToken{
		AccessToken:  refreshed.AccessToken,
		RefreshToken: refreshed.RefreshToken,
		Expiry:       refreshed.Expiry.UTC(),
	}
	if renewed.RefreshToken == "" {
		renewed.RefreshToken = stored.RefreshToken
	}
	if err := s.store.SaveToken(ctx, propertyID, renewed); err != nil {
		return "", fmt.Errorf("persist refreshed token: %w", err)
	}
	s.logger.Debug("token refreshed",
		zap.String("property_id", propertyID),
		zap.Time("expiry", renewed.Expiry),
	)
	return renewed.AccessToken, nil
}
