package token

import (
	"context"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"case-gateway/internal/common/logging"
)

// Kind identifies which credential a store operation targets.
type Kind string

const (
	// KindID is the OpenID Connect identity token
	KindID Kind = "id"
	// KindAccess is the bearer token attached to CRM API calls
	KindAccess Kind = "access"
	// KindRefresh is the long-lived token used to obtain fresh access tokens
	KindRefresh Kind = "refresh"
)

// Kinds lists every credential kind, in clear order.
var Kinds = []Kind{KindID, KindAccess, KindRefresh}

// Store persists raw token strings by kind. Implementations are best-effort:
// storage failures are logged and swallowed, never surfaced to the request
// pipeline, because losing a stored token degrades to "log in again" rather
// than a broken page.
type Store interface {
	// Get returns the stored token for the kind, empty string if absent
	Get(ctx context.Context, kind Kind) string
	// Set stores a token for the kind, overwriting any existing value
	Set(ctx context.Context, kind Kind, value string)
	// Clear removes the stored token for the kind
	Clear(ctx context.Context, kind Kind)
}

// Backend is a thin key-value abstraction over one token storage area.
// Two backends compose into the dual store: a fast ephemeral session area
// and a durable per-principal area that survives the session boundary.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// SessionBackend implements Backend with an in-process map. It models the
// session-scoped slot: fast, thread-safe, gone when the process restarts.
type SessionBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewSessionBackend creates an empty session backend.
func NewSessionBackend() *SessionBackend {
	return &SessionBackend{values: make(map[string]string)}
}

// Get retrieves a value from the session backend
func (s *SessionBackend) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key], nil
}

// Set stores a value in the session backend
func (s *SessionBackend) Set(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

// Delete removes a value from the session backend
func (s *SessionBackend) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// RedisBackend implements Backend using Redis for durable per-principal
// token storage. Keys carry a prefix for namespace isolation and a TTL so
// abandoned credentials age out on their own.
type RedisBackend struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a Redis-backed token storage area.
func NewRedisBackend(client *goredis.Client) *RedisBackend {
	return &RedisBackend{
		client: client,
		prefix: "token:",
		ttl:    30 * 24 * time.Hour,
	}
}

// Get retrieves a value from Redis, empty string if the key is absent
func (r *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == goredis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a value in Redis with the backend TTL
func (r *RedisBackend) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.prefix+key, value, r.ttl).Err()
}

// Delete removes a value from Redis
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// DualStore implements Store over an ephemeral session backend and a durable
// per-principal backend. Reads consult the session area first and fall back
// to the durable area, so a credential restored from durable storage is still
// found after the session slot is lost. Writes go to both areas.
type DualStore struct {
	session   Backend
	durable   Backend
	principal string
	logger    logging.Logger
}

// NewDualStore creates a dual token store scoped to one principal.
func NewDualStore(session, durable Backend, principal string, logger logging.Logger) *DualStore {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &DualStore{
		session:   session,
		durable:   durable,
		principal: principal,
		logger:    logger,
	}
}

// durableKey scopes a kind to this store's principal.
func (d *DualStore) durableKey(kind Kind) string {
	return d.principal + ":" + string(kind)
}

// Get returns the stored token for the kind, consulting the session area
// first and falling back to the durable area.
func (d *DualStore) Get(ctx context.Context, kind Kind) string {
	value, err := d.session.Get(ctx, string(kind))
	if err != nil {
		d.logger.Warn("Session token read failed",
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: err.Error()})
	}
	if value != "" {
		return value
	}

	value, err = d.durable.Get(ctx, d.durableKey(kind))
	if err != nil {
		d.logger.Warn("Durable token read failed",
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: err.Error()})
		return ""
	}
	return value
}

// Set writes the token to both the session and durable areas.
func (d *DualStore) Set(ctx context.Context, kind Kind, value string) {
	if err := d.session.Set(ctx, string(kind), value); err != nil {
		d.logger.Error("Failed to store token in session", err,
			logging.Field{Key: "kind", Value: string(kind)})
	}
	if err := d.durable.Set(ctx, d.durableKey(kind), value); err != nil {
		d.logger.Error("Failed to store token durably", err,
			logging.Field{Key: "kind", Value: string(kind)})
	}
}

// Clear removes the token from both areas.
func (d *DualStore) Clear(ctx context.Context, kind Kind) {
	if err := d.session.Delete(ctx, string(kind)); err != nil {
		d.logger.Warn("Failed to clear session token",
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: err.Error()})
	}
	if err := d.durable.Delete(ctx, d.durableKey(kind)); err != nil {
		d.logger.Warn("Failed to clear durable token",
			logging.Field{Key: "kind", Value: string(kind)},
			logging.Field{Key: "error", Value: err.Error()})
	}
}
