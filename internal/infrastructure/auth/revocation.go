package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationList records tokens invalidated before they expire. The identity
// service writes entries on logout; this service only needs to read them.
type RevocationList interface {
	// Revoke invalidates one token by its JTI for ttl
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	// IsRevoked reports whether the JTI was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeAccount invalidates every token for the account issued up to now
	RevokeAccount(ctx context.Context, accountID string, ttl time.Duration) error
	// IsAccountRevoked reports whether a token issued at issuedAt predates the account's revocation
	IsAccountRevoked(ctx context.Context, accountID string, issuedAt time.Time) (bool, error)
}

// CheckRevoked returns ErrTokenRevoked when claims were revoked by JTI or account
func CheckRevoked(ctx context.Context, list RevocationList, claims *Claims) error {
	if list == nil {
		return nil
	}
	if claims.ID != "" {
		revoked, err := list.IsRevoked(ctx, claims.ID)
		if err != nil {
			return err
		}
		if revoked {
			return ErrTokenRevoked
		}
	}
	revoked, err := list.IsAccountRevoked(ctx, claims.AccountID, claims.IssuedAtTime())
	if err != nil {
		return err
	}
	if revoked {
		return ErrTokenRevoked
	}
	return nil
}

const revocationPrefix = "token:revoked:"

// RedisRevocationList stores revocations in Redis with their natural expiry
type RedisRevocationList struct {
	client *redis.Client
}

// NewRedisRevocationList wraps an existing client
func NewRedisRevocationList(client *redis.Client) *RedisRevocationList {
	return &RedisRevocationList{client: client}
}

func jtiKey(jti string) string { return revocationPrefix + "jti:" + jti }
func accountKey(accountID string) string { return revocationPrefix + "account:" + accountID }

// Revoke implements RevocationList
func (r *RedisRevocationList) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, jtiKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked implements RevocationList
func (r *RedisRevocationList) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, jtiKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}

// RevokeAccount implements RevocationList
func (r *RedisRevocationList) RevokeAccount(ctx context.Context, accountID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, accountKey(accountID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke account tokens: %w", err)
	}
	return nil
}

// IsAccountRevoked implements RevocationList
func (r *RedisRevocationList) IsAccountRevoked(ctx context.Context, accountID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, accountKey(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check account revocation: %w", err)
	}
	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

var _ RevocationList = (*RedisRevocationList)(nil)

// InMemoryRevocationList is a single-process RevocationList for development and tests
type InMemoryRevocationList struct {
	mu       sync.Mutex
	jtis     map[string]time.Time
	accounts map[string]time.Time
	now      func() time.Time
}

// NewInMemoryRevocationList creates an empty list
func NewInMemoryRevocationList() *InMemoryRevocationList {
	return &InMemoryRevocationList{
		jtis:     make(map[string]time.Time),
		accounts: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Revoke implements RevocationList
func (m *InMemoryRevocationList) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jtis[jti] = m.now().Add(ttl)
	return nil
}

// IsRevoked implements RevocationList
func (m *InMemoryRevocationList) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	expires, ok := m.jtis[jti]
	if !ok {
		return false, nil
	}
	if m.now().After(expires) {
		delete(m.jtis, jti)
		return false, nil
	}
	return true, nil
}

// RevokeAccount implements RevocationList
func (m *InMemoryRevocationList) RevokeAccount(_ context.Context, accountID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = m.now()
	return nil
}

// IsAccountRevoked implements RevocationList
func (m *InMemoryRevocationList) IsAccountRevoked(_ context.Context, accountID string, issuedAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	revokedAt, ok := m.accounts[accountID]
	if !ok {
		return false, nil
	}
	return !issuedAt.After(revokedAt), nil
}

var _ RevocationList = (*InMemoryRevocationList)(nil)
