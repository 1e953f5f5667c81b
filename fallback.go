package main

import (
	"context"
	"errors"
)

// FallbackAuthority tries the remote authority first and, when it is
// unreachable and fallback is enabled, falls back to the local one. This is
// the single composition point for the local/centralized duality; nothing
// else in the codebase branches on deployment mode.
type FallbackAuthority struct {
	remote         *RemoteAuthority
	local          *LocalAuthority
	enableFallback bool
}

func NewFallbackAuthority(remote *RemoteAuthority, local *LocalAuthority, enableFallback bool) *FallbackAuthority {
	return &FallbackAuthority{remote: remote, local: local, enableFallback: enableFallback}
}

func (f *FallbackAuthority) GenerateToken(ctx context.Context, username, role string) (*TokenResponse, error) {
	resp, err := f.remote.GenerateToken(ctx, username, role)
	if err == nil {
		return resp, nil
	}
	if errors.Is(err, ErrRemoteUnavailable) && f.enableFallback {
		logger.Warnf("Centralized JWT service failed: %v", err)
		logger.Infof("Falling back to local token generation for user: %s", username)
		return f.local.GenerateToken(ctx, username, role)
	}
	return nil, err
}

func (f *FallbackAuthority) ValidateToken(ctx context.Context, req TokenValidationRequest) *TokenValidationResponse {
	resp, err := f.remote.validate(ctx, req)
	if err == nil {
		return resp
	}
	if f.enableFallback {
		logger.Warnf("Centralized JWT service failed: %v", err)
		return f.local.ValidateToken(ctx, req)
	}
	return validationInvalid("JWT service communication error")
}

func (f *FallbackAuthority) RevokeToken(ctx context.Context, req TokenRevocationRequest) *TokenRevocationResponse {
	resp, err := f.remote.revoke(ctx, req)
	if err == nil {
		return resp
	}
	if f.enableFallback {
		logger.Warnf("Centralized JWT service failed: %v", err)
		return f.local.RevokeToken(ctx, req)
	}
	return revocationFailure("Failed to communicate with JWT service")
}
