package token

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"case-gateway/internal/circuitbreaker"
	"case-gateway/internal/common/errors"
	"case-gateway/internal/common/logging"
)

// expiryWarningWindow is how close to expiry a returned token has to be
// before accessors log a warning about it.
const expiryWarningWindow = 5 * time.Minute

// Config holds the identity provider settings the service needs to
// renew and acquire tokens.
type Config struct {
	ClientID      string
	ClientSecret  string
	TokenEndpoint string
	Scope         string
}

// tokenResponse is the identity provider's token endpoint response body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	Error        string `json:"error"`
	ErrorDesc    string `json:"error_description"`
}

// Service manages the OAuth2 token lifecycle: reading stored credentials,
// inspecting JWT expiry, and exchanging refresh tokens or client credentials
// for fresh ones. Renewal never raises: every failure path logs and reports
// a boolean so callers degrade instead of breaking the request.
type Service struct {
	store      Store
	config     Config
	httpClient *http.Client
	breaker    *circuitbreaker.GoBreakerAdapter
	logger     logging.Logger

	// now is swappable for deterministic expiry tests
	now func() time.Time
}

// NewService creates a token lifecycle service.
func NewService(store Store, config Config, httpClient *http.Client, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Service{
		store:      store,
		config:     config,
		httpClient: httpClient,
		breaker:    circuitbreaker.NewGoBreaker("oauth-token", circuitbreaker.OAuthConfig, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// AccessToken returns the stored access token, empty string if absent.
// A token close to expiry is still returned, with a warning logged, so
// the caller's request proceeds and the renewal path gets a chance to run.
func (s *Service) AccessToken(ctx context.Context) string {
	return s.tokenWithWarning(ctx, KindAccess)
}

// IDToken returns the stored identity token, empty string if absent.
func (s *Service) IDToken(ctx context.Context) string {
	return s.tokenWithWarning(ctx, KindID)
}

// RefreshToken returns the stored refresh token, empty string if absent.
func (s *Service) RefreshToken(ctx context.Context) string {
	return s.store.Get(ctx, KindRefresh)
}

func (s *Service) tokenWithWarning(ctx context.Context, kind Kind) string {
	value := s.store.Get(ctx, kind)
	if value == "" {
		return ""
	}
	if ttl, ok := s.TimeUntilExpiry(value); ok && ttl < expiryWarningWindow {
		s.logger.Warn("Token close to expiry",
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "expires_in", Value: ttl.String()})
	}
	return value
}

// StoreTokens persists a token set. The refresh token is only overwritten
// when a new one is present; providers that do not rotate refresh tokens
// omit it from renewal responses and the old one stays valid.
func (s *Service) StoreTokens(ctx context.Context, idToken, accessToken, refreshToken string) {
	if idToken != "" {
		s.store.Set(ctx, KindID, idToken)
	}
	if accessToken != "" {
		s.store.Set(ctx, KindAccess, accessToken)
	}
	if refreshToken != "" {
		s.store.Set(ctx, KindRefresh, refreshToken)
	}
}

// Clear removes every stored credential. Used at logout.
func (s *Service) Clear(ctx context.Context) {
	for _, kind := range Kinds {
		s.store.Clear(ctx, kind)
	}
}

// Claims parses a JWT payload without verifying its signature. Verification
// happened at the identity provider; locally we only need the expiry claim.
func (s *Service) Claims(tokenString string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, errors.ValidationError("failed to parse token payload")
	}
	return claims, nil
}

// Scopes returns the token's scp claim, empty when absent or unparseable.
func (s *Service) Scopes(tokenString string) string {
	claims, err := s.Claims(tokenString)
	if err != nil {
		return ""
	}
	if scp, ok := claims["scp"].(string); ok {
		return scp
	}
	return ""
}

// AudienceValid reports whether the token's aud claim targets this client,
// either as the bare client id or the api://<client id> URI form.
func (s *Service) AudienceValid(tokenString string) bool {
	if s.config.ClientID == "" {
		return false
	}
	claims, err := s.Claims(tokenString)
	if err != nil {
		return false
	}
	aud, ok := claims["aud"].(string)
	if !ok {
		return false
	}
	return aud == s.config.ClientID || aud == "api://"+s.config.ClientID
}

// TimeUntilExpiry returns how long until the token expires. The second
// return is false when the payload is unparseable or carries no expiry,
// in which case the duration is meaningless.
func (s *Service) TimeUntilExpiry(tokenString string) (time.Duration, bool) {
	claims, err := s.Claims(tokenString)
	if err != nil {
		return 0, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0, false
	}
	return exp.Sub(s.now()), true
}

// IsExpired reports whether the token is past its expiry. A token whose
// payload cannot be parsed is treated as expired rather than trusted.
func (s *Service) IsExpired(tokenString string) bool {
	ttl, ok := s.TimeUntilExpiry(tokenString)
	return !ok || ttl <= 0
}

// Renew exchanges the stored refresh token for a fresh token set. It returns
// true on success and false on any failure; it never returns an error because
// renewal runs inside request handling where a failure must degrade, not break.
// When provider configuration is incomplete it fails fast without a network call.
func (s *Service) Renew(ctx context.Context) bool {
	if s.config.ClientID == "" || s.config.ClientSecret == "" || s.config.TokenEndpoint == "" {
		s.logger.Error("Cannot renew token: provider configuration incomplete",
			errors.ConfigError("missing client credentials or token endpoint"))
		return false
	}

	refreshToken := s.store.Get(ctx, KindRefresh)
	if refreshToken == "" {
		s.logger.Warn("Cannot renew token: no refresh token stored")
		return false
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", s.config.ClientID)
	data.Set("client_secret", s.config.ClientSecret)
	if s.config.Scope != "" {
		data.Set("scope", s.config.Scope)
	}

	resp, err := s.requestToken(ctx, data)
	if err != nil {
		s.logger.Error("Token renewal failed", err)
		return false
	}

	s.StoreTokens(ctx, resp.IDToken, resp.AccessToken, resp.RefreshToken)
	s.logger.Info("Token renewed",
		logging.Field{Key: "rotated_refresh", Value: resp.RefreshToken != ""})
	return true
}

// Acquire obtains a token set with the client credentials grant. This is
// the service-account path for deployments without a user login flow.
func (s *Service) Acquire(ctx context.Context) bool {
	if s.config.ClientID == "" || s.config.ClientSecret == "" || s.config.TokenEndpoint == "" {
		s.logger.Error("Cannot acquire token: provider configuration incomplete",
			errors.ConfigError("missing client credentials or token endpoint"))
		return false
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", s.config.ClientID)
	data.Set("client_secret", s.config.ClientSecret)
	if s.config.Scope != "" {
		data.Set("scope", s.config.Scope)
	}

	resp, err := s.requestToken(ctx, data)
	if err != nil {
		s.logger.Error("Token acquisition failed", err)
		return false
	}

	s.StoreTokens(ctx, resp.IDToken, resp.AccessToken, resp.RefreshToken)
	s.logger.Info("Token acquired via client credentials")
	return true
}

// requestToken posts a form-encoded grant request to the token endpoint
// through the circuit breaker and decodes the response.
func (s *Service) requestToken(ctx context.Context, data url.Values) (*tokenResponse, error) {
	var result *tokenResponse

	err := s.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			s.config.TokenEndpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return errors.InternalError("failed to build token request", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return errors.ConnectionError("token endpoint unreachable", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return errors.ConnectionError("failed to read token response", err)
		}

		var tr tokenResponse
		if err := json.Unmarshal(body, &tr); err != nil {
			return errors.InternalError("failed to decode token response", err)
		}

		if resp.StatusCode != http.StatusOK {
			detail := tr.Error
			if tr.ErrorDesc != "" {
				detail = fmt.Sprintf("%s: %s", tr.Error, tr.ErrorDesc)
			}
			return errors.FromStatusCode(resp.StatusCode, detail)
		}

		if tr.AccessToken == "" && tr.IDToken == "" {
			return errors.InternalError("token response contained no tokens", nil)
		}

		result = &tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
