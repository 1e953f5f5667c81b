package main

import (
	"context"
	"fmt"
	"time"
)

// TokenResponse is returned by a successful token generation.
type TokenResponse struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresIn int64  `json:"expiresIn"`
}

// TokenValidationRequest asks whether a token is valid, optionally pinning the
// expected subject.
type TokenValidationRequest struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username,omitempty"`
}

// TokenValidationResponse is the non-throwing outcome of a validation. A
// failed validation is a value, never an error.
type TokenValidationResponse struct {
	Valid     bool       `json:"valid"`
	Username  string     `json:"username,omitempty"`
	Role      string     `json:"role,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Message   string     `json:"message"`
}

// TokenRevocationRequest revokes a single token or, with RevokeAllUserTokens,
// every active token of the token's owner.
type TokenRevocationRequest struct {
	Token               string `json:"token" validate:"required"`
	Reason              string `json:"reason,omitempty"`
	RevokeAllUserTokens bool   `json:"revokeAllUserTokens,omitempty"`
}

// TokenRevocationResponse reports the outcome of a revocation request.
type TokenRevocationResponse struct {
	Revoked       bool   `json:"revoked"`
	Username      string `json:"username,omitempty"`
	TokensRevoked int    `json:"tokensRevoked"`
	Message       string `json:"message"`
}

func validationValid(username, role string, expiresAt time.Time) *TokenValidationResponse {
	return &TokenValidationResponse{Valid: true, Username: username, Role: role, ExpiresAt: &expiresAt, Message: "Token is valid"}
}

func validationInvalid(message string) *TokenValidationResponse {
	return &TokenValidationResponse{Valid: false, Message: message}
}

func validationExpired() *TokenValidationResponse {
	return &TokenValidationResponse{Valid: false, Message: "Token has expired"}
}

func validationMalformed() *TokenValidationResponse {
	return &TokenValidationResponse{Valid: false, Message: "Token is malformed"}
}

func revocationSuccess(message, username string, count int) *TokenRevocationResponse {
	return &TokenRevocationResponse{Revoked: true, Username: username, TokensRevoked: count, Message: message}
}

func revocationFailure(message string) *TokenRevocationResponse {
	return &TokenRevocationResponse{Revoked: false, Message: message}
}

// TokenAuthority owns the token lifecycle: issue, validate, revoke. Two
// implementations exist (LocalAuthority and RemoteAuthority) plus the
// FallbackAuthority composition; callers never branch on deployment mode.
type TokenAuthority interface {
	GenerateToken(ctx context.Context, username, role string) (*TokenResponse, error)
	ValidateToken(ctx context.Context, req TokenValidationRequest) *TokenValidationResponse
	RevokeToken(ctx context.Context, req TokenRevocationRequest) *TokenRevocationResponse
}

// LocalAuthority implements TokenAuthority in-process over a codec and a
// token store. It holds no mutable state of its own; all coordination is
// pushed down into the store's per-key atomicity.
type LocalAuthority struct {
	codec *TokenCodec
	store TokenStore
}

func NewLocalAuthority(codec *TokenCodec, store TokenStore) *LocalAuthority {
	return &LocalAuthority{codec: codec, store: store}
}

// GenerateToken issues a token for username with the given role and indexes
// it into the store. Indexing is best-effort: a store failure is logged but
// never blocks issuance, since the token itself is self-describing.
func (a *LocalAuthority) GenerateToken(ctx context.Context, username, role string) (*TokenResponse, error) {
	logger.Infof("Generating token for user: %s", username)

	token, err := a.codec.Encode(username, role)
	if err != nil {
		return nil, fmt.Errorf("generating token for %s: %w", username, err)
	}

	ttl := a.codec.TTL()
	if err := a.store.PutActive(ctx, token, username, ttl); err != nil {
		logger.Warnf("Failed to store active token: %v", err)
	}
	if err := a.store.AddToUserSet(ctx, username, token, ttl); err != nil {
		logger.Warnf("Failed to add token to user mapping: %v", err)
	}

	return &TokenResponse{
		Token:     token,
		Type:      "Bearer",
		Username:  username,
		Role:      role,
		ExpiresIn: int64(ttl.Seconds()),
	}, nil
}

// ValidateToken checks the blacklist, decodes the token, verifies signature,
// expiry and subject, and enforces the optional expected-username pin. It
// never returns an error; every failure is a typed result.
func (a *LocalAuthority) ValidateToken(ctx context.Context, req TokenValidationRequest) *TokenValidationResponse {
	if a.store.IsBlacklisted(ctx, req.Token) {
		logger.Warn("Attempt to use blacklisted token")
		return validationInvalid("Token has been revoked")
	}

	claims, err := a.codec.Decode(req.Token)
	switch err {
	case nil:
	case ErrTokenExpired:
		return validationExpired()
	case ErrTokenMalformed:
		return validationMalformed()
	default:
		return validationInvalid("Token validation error: " + err.Error())
	}

	if !a.codec.IsValid(req.Token, claims.Subject) {
		logger.Warnf("Invalid token for user: %s", claims.Subject)
		return validationInvalid("Token validation failed")
	}

	if req.Username != "" && req.Username != claims.Subject {
		logger.Warnf("Username mismatch in token validation: expected %s, found %s", req.Username, claims.Subject)
		return validationInvalid("Username mismatch")
	}

	return validationValid(claims.Subject, claims.Role, claims.ExpiresAt.Time)
}

// RevokeToken blacklists a single token or every active token of its owner.
// Revoking an already-revoked or structurally invalid token is a no-op
// failure (revoked=false), keeping revocation idempotent at the HTTP layer.
func (a *LocalAuthority) RevokeToken(ctx context.Context, req TokenRevocationRequest) *TokenRevocationResponse {
	claims, err := a.codec.Decode(req.Token)
	if err != nil {
		return revocationFailure("Failed to revoke token: " + err.Error())
	}
	username := claims.Subject

	if req.RevokeAllUserTokens {
		count := a.revokeAllUserTokens(ctx, username)
		logger.Infof("Revoked %d tokens for user: %s", count, username)
		return revocationSuccess(fmt.Sprintf("All tokens revoked successfully for user: %s", username), username, count)
	}

	if a.store.IsBlacklisted(ctx, req.Token) {
		return revocationFailure("Token was already revoked or invalid")
	}
	if !a.revokeSingleToken(ctx, req.Token, username) {
		return revocationFailure("Token was already revoked or invalid")
	}
	logger.Infof("Token revoked successfully for user: %s", username)
	return revocationSuccess("Token revoked successfully", username, 1)
}

// UserActiveTokenCount returns the number of tokens currently active for
// username, 0 when the store cannot answer.
func (a *LocalAuthority) UserActiveTokenCount(ctx context.Context, username string) int {
	members, err := a.store.UserSetMembers(ctx, username)
	if err != nil {
		logger.Errorf("Error getting active token count for user %s: %v", username, err)
		return 0
	}
	return len(members)
}

// revokeSingleToken blacklists token for the remainder of its own lifetime
// and drops it from the active indexes. The blacklist TTL is computed from
// the token's expiry, not a fresh window, so entries never outlive the token.
func (a *LocalAuthority) revokeSingleToken(ctx context.Context, token, username string) bool {
	claims, err := a.codec.Decode(token)
	if err != nil {
		return false
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if remaining > 0 {
		if err := a.store.Blacklist(ctx, token, username, remaining); err != nil {
			logger.Errorf("Error blacklisting token: %v", err)
			return false
		}
	}
	if err := a.store.RemoveActive(ctx, token); err != nil {
		logger.Warnf("Failed to remove active token record: %v", err)
	}
	if err := a.store.RemoveFromUserSet(ctx, username, token); err != nil {
		logger.Warnf("Failed to remove token from user mapping: %v", err)
	}
	return true
}

func (a *LocalAuthority) revokeAllUserTokens(ctx context.Context, username string) int {
	members, err := a.store.UserSetMembers(ctx, username)
	if err != nil {
		logger.Errorf("Error enumerating tokens for user %s: %v", username, err)
		return 0
	}
	count := 0
	for _, token := range members {
		if a.revokeSingleToken(ctx, token, username) {
			count++
		}
	}
	if err := a.store.DeleteUserSet(ctx, username); err != nil {
		logger.Warnf("Failed to clear token set for user %s: %v", username, err)
	}
	return count
}
