package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrTicketNotFound indicates an expired or unknown download ticket.
var ErrTicketNotFound = errors.New("platform/cache: download ticket not found")

// TicketStore hands out short lived download tickets for generated
// artifacts. A ticket maps an opaque token to the artifact path so download
// URLs never expose storage paths, and expired archives stop being
// reachable without a cleanup pass.
type TicketStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTicketStore builds a ticket store. ttl bounds how long a download link
// stays valid.
func NewTicketStore(client *redis.Client, ttl time.Duration) *TicketStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TicketStore{client: client, ttl: ttl}
}

// Issue stores the artifact path under a fresh random token.
func (s *TicketStore) Issue(ctx context.Context, path string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("platform/cache: ticket token: %w", err)
	}
	token := hex.EncodeToString(buf)
	if err := s.client.Set(ctx, ticketKey(token), path, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("platform/cache: store ticket: %w", err)
	}
	return token, nil
}

// Redeem resolves a token to its artifact path. The ticket stays valid
// until it expires so a download can be retried.
func (s *TicketStore) Redeem(ctx context.Context, token string) (string, error) {
	path, err := s.client.Get(ctx, ticketKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrTicketNotFound
	}
	if err != nil {
		return "", fmt.Errorf("platform/cache: redeem ticket: %w", err)
	}
	return path, nil
}

// Revoke drops a ticket before its natural expiry.
func (s *TicketStore) Revoke(ctx context.Context, token string) error {
	return s.client.Del(ctx, ticketKey(token)).Err()
}

func ticketKey(token string) string {
	return "download:ticket:" + token
}
