package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func schedulerFixture(t *testing.T, enabled bool) (*Scheduler, Store, *int) {
	t.Helper()
	renewals := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		renewals++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "renewed-access",
		})
	}))
	t.Cleanup(server.Close)

	store := memoryStore()
	svc := newTestService(store, Config{
		ClientID: "client", ClientSecret: "secret", TokenEndpoint: server.URL,
	})
	return NewScheduler(svc, enabled, 10, nil), store, &renewals
}

func TestCheckAndRenew_WithinThreshold(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, true)

	store.Set(ctx, KindAccess, jwtExpiringIn(t, 5*time.Minute))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, true)

	if *renewals != 1 {
		t.Errorf("expected 1 renewal, got %d", *renewals)
	}
	if got := store.Get(ctx, KindAccess); got != "renewed-access" {
		t.Errorf("expected renewed token stored, got %q", got)
	}
}

func TestCheckAndRenew_OutsideThreshold(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, true)

	store.Set(ctx, KindAccess, jwtExpiringIn(t, 15*time.Minute))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, true)

	if *renewals != 0 {
		t.Errorf("expected no renewal for a healthy token, got %d", *renewals)
	}
}

func TestCheckAndRenew_ExactlyAtThreshold(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, true)

	// Pin the clock to a whole second so the token's remaining lifetime
	// is exactly the threshold.
	fixed := time.Unix(time.Now().Unix(), 0)
	scheduler.service.now = func() time.Time { return fixed }

	store.Set(ctx, KindAccess, makeJWT(t, map[string]interface{}{
		"exp": fixed.Add(scheduler.threshold).Unix(),
	}))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, true)

	// The window is strict: a token with the full threshold still left
	// is not renewed yet.
	if *renewals != 0 {
		t.Errorf("expected no renewal at the exact threshold, got %d", *renewals)
	}
}

func TestCheckAndRenew_ExpiredToken(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, true)

	store.Set(ctx, KindAccess, jwtExpiringIn(t, -time.Minute))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, true)

	if *renewals != 1 {
		t.Errorf("expected late renewal for expired token, got %d", *renewals)
	}
}

func TestCheckAndRenew_Disabled(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, false)

	store.Set(ctx, KindAccess, jwtExpiringIn(t, time.Minute))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, true)

	if *renewals != 0 {
		t.Errorf("expected no renewal when disabled, got %d", *renewals)
	}
}

func TestCheckAndRenew_Unauthenticated(t *testing.T) {
	ctx := context.Background()
	scheduler, store, renewals := schedulerFixture(t, true)

	store.Set(ctx, KindAccess, jwtExpiringIn(t, time.Minute))
	store.Set(ctx, KindRefresh, "refresh-1")

	scheduler.CheckAndRenew(ctx, false)

	if *renewals != 0 {
		t.Errorf("expected no renewal for anonymous request, got %d", *renewals)
	}
}

func TestCheckAndRenew_NoToken(t *testing.T) {
	scheduler, _, renewals := schedulerFixture(t, true)

	scheduler.CheckAndRenew(context.Background(), true)

	if *renewals != 0 {
		t.Errorf("expected no renewal without a stored token, got %d", *renewals)
	}
}
