package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"

	"github.com/0111v/projeto-faculdade/pkg/config"
	redisclient "github.com/0111v/projeto-faculdade/pkg/redis"
)

const refreshTokenBytes = 32

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingAccessID     = errors.New("access id is required")
)

// store is the Redis surface sessions need. Only token digests are stored.
type store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	AccessSessionKey(accessID string) string
}

// AccessSessionChecker is what the auth middleware asks on every request.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

// Session pairs the access token id (JWT jti) with its refresh token.
type Session struct {
	AccessID     string
	RefreshToken string
}

// Manager keeps one refresh session per access token id in Redis.
type Manager struct {
	store store
	ttl   time.Duration
}

// NewManager requires the refresh TTL to outlive the access token.
func NewManager(client *redisclient.Client, cfg config.JWTConfig) (*Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return newManager(client, cfg)
}

func newManager(s store, cfg config.JWTConfig) (*Manager, error) {
	ttl := cfg.RefreshTokenTTL()
	if ttl <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	if accessTTL := time.Duration(cfg.ExpirationMinutes) * time.Minute; ttl <= accessTTL {
		return nil, fmt.Errorf("refresh token ttl (%s) must exceed access token ttl (%s)", ttl, accessTTL)
	}
	return &Manager{store: s, ttl: ttl}, nil
}

// Start opens a new session under a fresh access id.
func (m *Manager) Start(ctx context.Context) (Session, error) {
	sess, err := newSession()
	if err != nil {
		return Session{}, err
	}
	if err := m.save(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Rotate consumes the refresh token of oldAccessID and opens a replacement.
// A token can be consumed once; replaying it yields ErrInvalidRefreshToken.
func (m *Manager) Rotate(ctx context.Context, oldAccessID, refreshToken string) (Session, error) {
	oldAccessID = strings.TrimSpace(oldAccessID)
	if oldAccessID == "" || strings.TrimSpace(refreshToken) == "" {
		return Session{}, ErrInvalidRefreshToken
	}

	consumed, err := m.store.DeleteIfEquals(ctx, m.store.AccessSessionKey(oldAccessID), digest(refreshToken))
	if err != nil {
		return Session{}, fmt.Errorf("consume refresh token: %w", err)
	}
	if !consumed {
		return Session{}, ErrInvalidRefreshToken
	}

	next, err := newSession()
	if err != nil {
		return Session{}, err
	}
	if err := m.save(ctx, next); err != nil {
		return Session{}, err
	}
	return next, nil
}

// Revoke ends the session; the access token stops passing HasSession.
func (m *Manager) Revoke(ctx context.Context, accessID string) error {
	if strings.TrimSpace(accessID) == "" {
		return errMissingAccessID
	}
	return m.store.Del(ctx, m.store.AccessSessionKey(accessID))
}

func (m *Manager) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, errMissingAccessID
	}
	_, err := m.store.Get(ctx, m.store.AccessSessionKey(accessID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redislib.Nil):
		return false, nil
	default:
		return false, err
	}
}

func (m *Manager) save(ctx context.Context, sess Session) error {
	if err := m.store.Set(ctx, m.store.AccessSessionKey(sess.AccessID), digest(sess.RefreshToken), m.ttl); err != nil {
		return fmt.Errorf("store refresh session: %w", err)
	}
	return nil
}

func newSession() (Session, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return Session{}, fmt.Errorf("generating refresh token: %w", err)
	}
	return Session{
		AccessID:     uuid.NewString(),
		RefreshToken: base64.RawURLEncoding.EncodeToString(buf),
	}, nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
