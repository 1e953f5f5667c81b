package main

import (
	"context"
	"time"
)

// Key space shared by both token store backends. Tokens are never stored in
// full structure; the store is an associative index over raw token strings and
// usernames, and the codec alone reconstructs claims.
const (
	activeKeyPrefix     = "jwt:active:"
	blacklistKeyPrefix  = "jwt:blacklist:"
	userTokensKeyPrefix = "user:tokens:"
)

// TokenStore records active tokens per user and a revocation set, with
// per-key expiry handled by the backend. Two interchangeable implementations
// exist: RedisTokenStore (durable, shared) and MemoryTokenStore (in-process
// fallback), selected by configuration.
type TokenStore interface {
	// PutActive records token as active for username for ttl.
	PutActive(ctx context.Context, token, username string, ttl time.Duration) error

	// AddToUserSet adds token to username's active set. The whole set's TTL
	// is reset to ttl on every insert, which extends the window of older
	// members already in the set. This mirrors the backing store's
	// SADD+EXPIRE behavior and is kept deliberately.
	AddToUserSet(ctx context.Context, username, token string, ttl time.Duration) error

	// IsBlacklisted reports whether token has been revoked. It fails open:
	// when the backend cannot answer, it logs and returns false, trading
	// perfect revocation enforcement for authentication availability.
	IsBlacklisted(ctx context.Context, token string) bool

	// Blacklist records token as revoked for the remainder of its natural
	// lifetime. Entries never outlive the token's own expiry.
	Blacklist(ctx context.Context, token, username string, remainingTTL time.Duration) error

	// RemoveActive deletes the active record for token.
	RemoveActive(ctx context.Context, token string) error

	// RemoveFromUserSet removes token from username's active set.
	RemoveFromUserSet(ctx context.Context, username, token string) error

	// UserSetMembers returns the tokens currently in username's active set.
	UserSetMembers(ctx context.Context, username string) ([]string, error)

	// DeleteUserSet removes username's active set entirely.
	DeleteUserSet(ctx context.Context, username string) error

	// Ping reports backend reachability.
	Ping(ctx context.Context) bool
}
