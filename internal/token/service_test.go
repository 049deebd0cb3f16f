package token

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// makeJWT builds an unsigned JWT with the given claims. Signature
// verification is the provider's job; locally only the payload matters.
func makeJWT(t *testing.T, claims map[string]interface{}) string {
	t.Helper()
	header, _ := json.Marshal(map[string]string{"alg": "none", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "."
}

func jwtExpiringIn(t *testing.T, d time.Duration) string {
	return makeJWT(t, map[string]interface{}{
		"sub": "user1",
		"exp": time.Now().Add(d).Unix(),
	})
}

func newTestService(store Store, config Config) *Service {
	return NewService(store, config, nil, nil)
}

func memoryStore() Store {
	return NewDualStore(NewSessionBackend(), NewSessionBackend(), "user1", nil)
}

func TestTimeUntilExpiry(t *testing.T) {
	svc := newTestService(memoryStore(), Config{})

	ttl, ok := svc.TimeUntilExpiry(jwtExpiringIn(t, time.Hour))
	if !ok {
		t.Fatal("expected expiry to be present")
	}
	if ttl < 59*time.Minute || ttl > time.Hour {
		t.Errorf("expected ttl close to an hour, got %v", ttl)
	}
}

func TestTimeUntilExpiry_Unparseable(t *testing.T) {
	svc := newTestService(memoryStore(), Config{})

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"bad base64", "a.!!!.c"},
		{"no expiry claim", makeJWT(t, map[string]interface{}{"sub": "user1"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := svc.TimeUntilExpiry(tt.token); ok {
				t.Error("expected expiry to be absent")
			}
			if !svc.IsExpired(tt.token) {
				t.Error("expected unparseable token to be treated as expired")
			}
		})
	}
}

func TestScopes(t *testing.T) {
	svc := newTestService(memoryStore(), Config{})

	withScope := makeJWT(t, map[string]interface{}{"scp": "Cases.Read Cases.Write"})
	if got := svc.Scopes(withScope); got != "Cases.Read Cases.Write" {
		t.Errorf("expected scp claim, got %q", got)
	}
	if got := svc.Scopes("not-a-jwt"); got != "" {
		t.Errorf("expected empty scopes for unparseable token, got %q", got)
	}
}

func TestAudienceValid(t *testing.T) {
	svc := newTestService(memoryStore(), Config{ClientID: "client-1"})

	tests := []struct {
		name string
		aud  interface{}
		want bool
	}{
		{"bare client id", "client-1", true},
		{"api uri form", "api://client-1", true},
		{"other audience", "someone-else", false},
		{"missing claim", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := map[string]interface{}{"sub": "user1"}
			if tt.aud != nil {
				claims["aud"] = tt.aud
			}
			if got := svc.AudienceValid(makeJWT(t, claims)); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestIsExpired(t *testing.T) {
	svc := newTestService(memoryStore(), Config{})

	if svc.IsExpired(jwtExpiringIn(t, time.Hour)) {
		t.Error("future token reported expired")
	}
	if !svc.IsExpired(jwtExpiringIn(t, -time.Minute)) {
		t.Error("past token not reported expired")
	}
}

func TestStoreTokens_RefreshNotClobbered(t *testing.T) {
	ctx := context.Background()
	store := memoryStore()
	svc := newTestService(store, Config{})

	svc.StoreTokens(ctx, "id-1", "access-1", "refresh-1")
	// Provider did not rotate the refresh token on renewal.
	svc.StoreTokens(ctx, "id-2", "access-2", "")

	if got := store.Get(ctx, KindAccess); got != "access-2" {
		t.Errorf("expected access-2, got %q", got)
	}
	if got := store.Get(ctx, KindRefresh); got != "refresh-1" {
		t.Errorf("expected refresh token preserved, got %q", got)
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	store := memoryStore()
	svc := newTestService(store, Config{})

	svc.StoreTokens(ctx, "id-1", "access-1", "refresh-1")
	svc.Clear(ctx)

	for _, kind := range Kinds {
		if got := store.Get(ctx, kind); got != "" {
			t.Errorf("expected %s cleared, got %q", kind, got)
		}
	}
}

func TestRenew_Success(t *testing.T) {
	ctx := context.Background()
	var gotGrant, gotRefresh string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotGrant = r.FormValue("grant_type")
		gotRefresh = r.FormValue("refresh_token")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"id_token":      "new-id",
			"refresh_token": "new-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer server.Close()

	store := memoryStore()
	store.Set(ctx, KindRefresh, "old-refresh")
	svc := newTestService(store, Config{
		ClientID:      "client",
		ClientSecret:  "secret",
		TokenEndpoint: server.URL,
		Scope:         "openid offline_access",
	})

	if !svc.Renew(ctx) {
		t.Fatal("expected renewal to succeed")
	}
	if gotGrant != "refresh_token" {
		t.Errorf("expected refresh_token grant, got %q", gotGrant)
	}
	if gotRefresh != "old-refresh" {
		t.Errorf("expected old refresh token sent, got %q", gotRefresh)
	}
	if got := store.Get(ctx, KindAccess); got != "new-access" {
		t.Errorf("expected new-access stored, got %q", got)
	}
	if got := store.Get(ctx, KindRefresh); got != "new-refresh" {
		t.Errorf("expected rotated refresh stored, got %q", got)
	}
}

func TestRenew_NoRotation(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "new-access",
		})
	}))
	defer server.Close()

	store := memoryStore()
	store.Set(ctx, KindRefresh, "old-refresh")
	svc := newTestService(store, Config{
		ClientID: "client", ClientSecret: "secret", TokenEndpoint: server.URL,
	})

	if !svc.Renew(ctx) {
		t.Fatal("expected renewal to succeed")
	}
	if got := store.Get(ctx, KindRefresh); got != "old-refresh" {
		t.Errorf("expected refresh token unchanged, got %q", got)
	}
}

func TestRenew_MissingConfig_NoNetworkCall(t *testing.T) {
	ctx := context.Background()
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	store := memoryStore()
	store.Set(ctx, KindRefresh, "old-refresh")
	svc := newTestService(store, Config{TokenEndpoint: server.URL})

	if svc.Renew(ctx) {
		t.Error("expected renewal to fail with missing client credentials")
	}
	if called {
		t.Error("expected no network call when configuration is incomplete")
	}
}

func TestRenew_NoRefreshToken(t *testing.T) {
	svc := newTestService(memoryStore(), Config{
		ClientID: "client", ClientSecret: "secret", TokenEndpoint: "https://example.com/token",
	})

	if svc.Renew(context.Background()) {
		t.Error("expected renewal to fail without a stored refresh token")
	}
}

func TestRenew_ProviderError(t *testing.T) {
	ctx := context.Background()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}))
	defer server.Close()

	store := memoryStore()
	store.Set(ctx, KindRefresh, "revoked")
	store.Set(ctx, KindAccess, "stale-access")
	svc := newTestService(store, Config{
		ClientID: "client", ClientSecret: "secret", TokenEndpoint: server.URL,
	})

	if svc.Renew(ctx) {
		t.Error("expected renewal to fail on provider error")
	}
	// A failed renewal must not disturb stored credentials.
	if got := store.Get(ctx, KindAccess); got != "stale-access" {
		t.Errorf("expected stored access token untouched, got %q", got)
	}
}

func TestAcquire_ClientCredentials(t *testing.T) {
	ctx := context.Background()
	var gotGrant string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotGrant = r.FormValue("grant_type")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "svc-access",
		})
	}))
	defer server.Close()

	store := memoryStore()
	svc := newTestService(store, Config{
		ClientID: "client", ClientSecret: "secret", TokenEndpoint: server.URL,
	})

	if !svc.Acquire(ctx) {
		t.Fatal("expected acquisition to succeed")
	}
	if gotGrant != "client_credentials" {
		t.Errorf("expected client_credentials grant, got %q", gotGrant)
	}
	if got := store.Get(ctx, KindAccess); got != "svc-access" {
		t.Errorf("expected svc-access stored, got %q", got)
	}
}

func TestAccessToken_ReturnsStoredValue(t *testing.T) {
	ctx := context.Background()
	store := memoryStore()
	svc := newTestService(store, Config{})

	if got := svc.AccessToken(ctx); got != "" {
		t.Errorf("expected empty for absent token, got %q", got)
	}

	// Near-expiry tokens are still returned; the warning is advisory.
	nearExpiry := jwtExpiringIn(t, 2*time.Minute)
	store.Set(ctx, KindAccess, nearExpiry)
	if got := svc.AccessToken(ctx); got != nearExpiry {
		t.Error("expected near-expiry token to be returned")
	}
}
