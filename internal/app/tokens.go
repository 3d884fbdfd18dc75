package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const defaultTokenLifetime = time.Hour

// TokenManager keeps a connection's access token usable. Concurrent callers for
// the same connection share one refresh.
type TokenManager struct {
	conns domain.ConnectionRepository
	oauth domain.OAuthClient
	group singleflight.Group
	now   func() time.Time
}

func NewTokenManager(conns domain.ConnectionRepository, oauth domain.OAuthClient) *TokenManager {
	return &TokenManager{conns: conns, oauth: oauth, now: time.Now}
}

// EnsureFresh returns the connection unchanged while its token is valid, otherwise
// refreshes and persists it. An expired connection without a refresh token fails
// with ErrReauthRequired before any network call.
func (m *TokenManager) EnsureFresh(ctx context.Context, conn domain.GoogleConnection) (domain.GoogleConnection, error) {
	if !conn.Expired(m.now()) {
		return conn, nil
	}
	if conn.RefreshToken == "" {
		observability.ObserveTokenRefresh("reauth")
		return domain.GoogleConnection{}, domain.ErrReauthRequired
	}

	// The refresh is shared, so one caller cancelling must not fail the others.
	refreshCtx := context.WithoutCancel(ctx)
	v, err, shared := m.group.Do(conn.ID, func() (any, error) {
		return m.refresh(refreshCtx, conn)
	})
	if err != nil {
		return domain.GoogleConnection{}, err
	}
	if shared {
		log.Debug().Str("connection_id", conn.ID).Msg("joined in-flight token refresh")
	}
	return v.(domain.GoogleConnection), nil
}

func (m *TokenManager) refresh(ctx context.Context, conn domain.GoogleConnection) (domain.GoogleConnection, error) {
	tok, err := m.oauth.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrReauthRequired) {
			observability.ObserveTokenRefresh("reauth")
		} else {
			observability.ObserveTokenRefresh("error")
		}
		return domain.GoogleConnection{}, err
	}

	out := conn
	out.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		out.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		out.TokenType = tok.TokenType
	}
	if tok.Scope != "" {
		out.Scope = tok.Scope
	}
	exp := tok.ExpiresAt
	if exp.IsZero() {
		exp = m.now().Add(defaultTokenLifetime)
	}
	out.ExpiresAt = &exp

	if err := m.conns.UpdateTokens(ctx, conn.ID, out.AccessToken, out.RefreshToken, exp); err != nil {
		observability.ObserveTokenRefresh("error")
		return domain.GoogleConnection{}, fmt.Errorf("persist refreshed token: %w", err)
	}
	observability.ObserveTokenRefresh("ok")
	log.Info().Str("connection_id", conn.ID).Time("expires_at", exp).Msg("google access token refreshed")
	return out, nil
}
