package httpserver

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"replymate/internal/adapters/observability"
	"replymate/internal/domain"
)

const (
	StateCookie = "google_oauth_state"
	stateTTL    = 10 * time.Minute
	statePath   = "/v1/google"
)

type stateClaims struct {
	State  string `json:"state"`
	UserID string `json:"uid"`
	jwt.RegisteredClaims
}

// OAuthHandlers drive the Google Business Profile consent flow.
type OAuthHandlers struct {
	client       domain.OAuthClient
	conns        domain.ConnectionRepository
	nonces       domain.NonceStore
	secret       []byte
	dashboardURL string
	secure       bool
	now          func() time.Time
}

// NewOAuthHandlers signs state cookies with secret. secure marks cookies Secure (https deployments).
func NewOAuthHandlers(client domain.OAuthClient, conns domain.ConnectionRepository, nonces domain.NonceStore, secret, dashboardURL string, secure bool) *OAuthHandlers {
	return &OAuthHandlers{
		client: client, conns: conns, nonces: nonces,
		secret: []byte(secret), dashboardURL: dashboardURL, secure: secure,
		now: time.Now,
	}
}

func (o *OAuthHandlers) stateCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     StateCookie,
		Value:    value,
		Path:     statePath,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   o.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (o *OAuthHandlers) authorize(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	target, err := o.client.AuthCodeURL(state)
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := o.now()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, stateClaims{
		State:  state,
		UserID: UserID(r.Context()),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}).SignedString(o.secret)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, o.stateCookie(signed, int(stateTTL.Seconds())))
	http.Redirect(w, r, target, http.StatusFound)
}

func (o *OAuthHandlers) parseState(raw string) (stateClaims, error) {
	var c stateClaims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return o.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(o.now),
	)
	if err != nil {
		return stateClaims{}, err
	}
	if c.State == "" || c.UserID == "" {
		return stateClaims{}, errors.New("incomplete state")
	}
	return c, nil
}

func (o *OAuthHandlers) redirectDashboard(w http.ResponseWriter, r *http.Request, key, value string) {
	u, err := url.Parse(o.dashboardURL)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Configuration Error", "invalid DASHBOARD_URL")
		return
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}

func (o *OAuthHandlers) fail(w http.ResponseWriter, r *http.Request, code string, err error) {
	observability.Ctx(r.Context()).Warn().Err(err).Str("reason", code).Msg("google connect failed")
	o.redirectDashboard(w, r, "google_error", code)
}

// callback is single use: the state cookie is cleared and its nonce claimed before the code is exchanged.
func (o *OAuthHandlers) callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	http.SetCookie(w, o.stateCookie("", -1))

	if e := r.URL.Query().Get("error"); e != "" {
		o.fail(w, r, "access_denied", errors.New(e))
		return
	}
	code, state := r.URL.Query().Get("code"), r.URL.Query().Get("state")
	if code == "" || state == "" {
		o.fail(w, r, "missing_params", domain.ErrValidation)
		return
	}
	ck, err := r.Cookie(StateCookie)
	if err != nil {
		o.fail(w, r, "invalid_state", err)
		return
	}
	claims, err := o.parseState(ck.Value)
	if err != nil || claims.State != state {
		o.fail(w, r, "invalid_state", err)
		return
	}
	if ok, err := o.nonces.Claim(ctx, claims.State, stateTTL); err != nil || !ok {
		o.fail(w, r, "invalid_state", err)
		return
	}

	tok, err := o.client.Exchange(ctx, code)
	if err != nil {
		o.fail(w, r, "token_exchange_failed", err)
		return
	}

	conn := domain.GoogleConnection{
		ID:           uuid.NewString(),
		UserID:       claims.UserID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Scope:        tok.Scope,
		ExpiresAt:    &tok.ExpiresAt,
	}
	// Google omits the refresh token on re-consent of an already granted scope.
	existing, err := o.conns.GetConnection(ctx, claims.UserID)
	switch {
	case err == nil:
		conn.ID = existing.ID
		if conn.RefreshToken == "" {
			conn.RefreshToken = existing.RefreshToken
		}
	case !errors.Is(err, domain.ErrNotFound):
		o.fail(w, r, "storage_error", err)
		return
	}
	if err := o.conns.UpsertConnection(ctx, conn); err != nil {
		o.fail(w, r, "storage_error", err)
		return
	}

	observability.Ctx(ctx).Info().Str("user_id", claims.UserID).Msg("google account connected")
	o.redirectDashboard(w, r, "google", "connected")
}

func (o *OAuthHandlers) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := o.conns.DeleteConnection(r.Context(), UserID(r.Context())); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
