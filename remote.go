package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client-level failure kinds for the centralized authority.
var (
	// ErrRemoteUnavailable means every transport attempt failed; callers
	// decide whether to fall back to a local authority.
	ErrRemoteUnavailable = errors.New("jwt service unavailable")
	// ErrRemoteRejected means the remote answered but refused the request;
	// this is never retried.
	ErrRemoteRejected = errors.New("jwt service rejected request")
)

// RemoteAuthority calls a remote TokenAuthority deployment over HTTP.
// Generation and validation are retried with exponential backoff on
// transport-level failure; revocation is a single attempt.
type RemoteAuthority struct {
	baseURL    string
	client     *http.Client
	maxRetries int
	retryBase  time.Duration
	retryCap   time.Duration
}

func NewRemoteAuthority(baseURL string, maxRetries int, retryBase, retryCap time.Duration) *RemoteAuthority {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &RemoteAuthority{
		baseURL:    baseURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: maxRetries,
		retryBase:  retryBase,
		retryCap:   retryCap,
	}
}

// newBackOff yields delays of min(base*2^(attempt-1), cap). Context
// cancellation aborts the wait and surfaces as a communication error.
func (r *RemoteAuthority) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.retryBase
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = r.retryCap
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.maxRetries-1)), ctx)
}

// post sends a JSON body and returns the response bytes. Non-2xx statuses in
// the 4xx range are permanent rejections; everything else is retryable.
func (r *RemoteAuthority) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, backoff.Permanent(fmt.Errorf("%w: status %d", ErrRemoteRejected, resp.StatusCode))
	}
	return nil, fmt.Errorf("jwt service returned status %d", resp.StatusCode)
}

// remoteEnvelope is the success/data-wrapped response shape some deployments
// of the centralized service produce for /generate. The flat TokenResponse
// shape is also accepted.
type remoteEnvelope struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *TokenResponse `json:"data"`
}

func parseTokenResponse(data []byte) (*TokenResponse, error) {
	var env remoteEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Data != nil {
		if !env.Success {
			return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrRemoteRejected, env.Message))
		}
		if env.Data.Token == "" {
			return nil, backoff.Permanent(fmt.Errorf("%w: response missing token", ErrRemoteRejected))
		}
		return env.Data, nil
	}
	var flat TokenResponse
	if err := json.Unmarshal(data, &flat); err != nil || flat.Token == "" {
		return nil, backoff.Permanent(fmt.Errorf("%w: unrecognized response shape", ErrRemoteRejected))
	}
	return &flat, nil
}

// GenerateToken requests a token from the remote authority. Exhausting all
// attempts yields an error wrapping ErrRemoteUnavailable.
func (r *RemoteAuthority) GenerateToken(ctx context.Context, username, role string) (*TokenResponse, error) {
	attempt := 0
	op := func() (*TokenResponse, error) {
		attempt++
		data, err := r.post(ctx, "/generate", map[string]string{"username": username, "role": role})
		if err != nil {
			logger.Warnf("Attempt %d/%d failed for token generation: %v", attempt, r.maxRetries, err)
			return nil, err
		}
		return parseTokenResponse(data)
	}
	resp, err := backoff.RetryWithData(op, r.newBackOff(ctx))
	if err != nil {
		if errors.Is(err, ErrRemoteRejected) {
			return nil, err
		}
		logger.Errorf("All %d attempts failed for token generation", r.maxRetries)
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRemoteUnavailable, r.maxRetries, err)
	}
	return resp, nil
}

// validate performs the retried validation call. The returned error means the
// remote could not be reached at all; a reachable remote always yields a
// result, valid or not.
func (r *RemoteAuthority) validate(ctx context.Context, req TokenValidationRequest) (*TokenValidationResponse, error) {
	attempt := 0
	op := func() (*TokenValidationResponse, error) {
		attempt++
		data, err := r.post(ctx, "/validate", req)
		if err != nil {
			logger.Warnf("Attempt %d/%d failed for token validation: %v", attempt, r.maxRetries, err)
			return nil, err
		}
		var result TokenValidationResponse
		if err := json.Unmarshal(data, &result); err != nil {
			return nil, backoff.Permanent(fmt.Errorf("%w: unrecognized response shape", ErrRemoteRejected))
		}
		return &result, nil
	}
	resp, err := backoff.RetryWithData(op, r.newBackOff(ctx))
	if err != nil {
		if errors.Is(err, ErrRemoteRejected) {
			return validationInvalid("Token validation failed"), nil
		}
		return nil, fmt.Errorf("%w after %d attempts: %v", ErrRemoteUnavailable, r.maxRetries, err)
	}
	return resp, nil
}

// ValidateToken fails closed: when the remote is unreachable, the result is a
// negative validation, which denies access downstream.
func (r *RemoteAuthority) ValidateToken(ctx context.Context, req TokenValidationRequest) *TokenValidationResponse {
	resp, err := r.validate(ctx, req)
	if err != nil {
		return validationInvalid(fmt.Sprintf("JWT service communication error after %d attempts", r.maxRetries))
	}
	return resp
}

// revoke is a single attempt; the reference behavior does not retry
// revocation.
func (r *RemoteAuthority) revoke(ctx context.Context, req TokenRevocationRequest) (*TokenRevocationResponse, error) {
	data, err := r.post(ctx, "/revoke", req)
	if err != nil {
		logger.Errorf("Error communicating with JWT service for token revocation: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrRemoteUnavailable, err)
	}
	var result TokenRevocationResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("%w: unrecognized response shape", ErrRemoteUnavailable)
	}
	return &result, nil
}

func (r *RemoteAuthority) RevokeToken(ctx context.Context, req TokenRevocationRequest) *TokenRevocationResponse {
	resp, err := r.revoke(ctx, req)
	if err != nil {
		return revocationFailure("Failed to communicate with JWT service")
	}
	return resp
}
