package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestRemote(baseURL string) *RemoteAuthority {
	return NewRemoteAuthority(baseURL, 3, time.Millisecond, 5*time.Millisecond)
}

func TestRemoteAuthorityGenerateFlatResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/generate", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "alice", body["username"])
		writeJSON(w, http.StatusOK, TokenResponse{Token: "remote-token", Type: "Bearer", Username: "alice", Role: "USER", ExpiresIn: 3600})
	}))
	defer srv.Close()

	resp, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.NoError(t, err)
	require.Equal(t, "remote-token", resp.Token)
	require.Equal(t, int64(3600), resp.ExpiresIn)
}

func TestRemoteAuthorityGenerateEnvelopedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeSuccess(w, http.StatusOK, "JWT token generated successfully", TokenResponse{Token: "remote-token", Type: "Bearer", Username: "alice", Role: "USER", ExpiresIn: 3600})
	}))
	defer srv.Close()

	resp, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.NoError(t, err)
	require.Equal(t, "remote-token", resp.Token)
	require.Equal(t, "alice", resp.Username)
}

func TestRemoteAuthorityGenerateRetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, TokenResponse{Token: "remote-token", ExpiresIn: 3600})
	}))
	defer srv.Close()

	resp, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.NoError(t, err)
	require.Equal(t, "remote-token", resp.Token)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteAuthorityGenerateExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.ErrorIs(t, err, ErrRemoteUnavailable)
	require.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRemoteAuthorityGenerateRejectionIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.ErrorIs(t, err, ErrRemoteRejected)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteAuthorityGenerateEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": false,
			"message": "user not found",
			"data":    TokenResponse{Token: "ignored"},
		})
	}))
	defer srv.Close()

	_, err := newTestRemote(srv.URL).GenerateToken(context.Background(), "alice", "USER")
	require.ErrorIs(t, err, ErrRemoteRejected)
}

func TestRemoteAuthorityValidateFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // remote unreachable

	result := newTestRemote(srv.URL).ValidateToken(context.Background(), TokenValidationRequest{Token: "some-token"})
	require.False(t, result.Valid)
	require.Contains(t, result.Message, "communication error")
}

func TestRemoteAuthorityValidatePassesThroughResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/validate", r.URL.Path)
		writeJSON(w, http.StatusOK, TokenValidationResponse{Valid: true, Username: "alice", Role: "USER", Message: "Token is valid"})
	}))
	defer srv.Close()

	result := newTestRemote(srv.URL).ValidateToken(context.Background(), TokenValidationRequest{Token: "some-token"})
	require.True(t, result.Valid)
	require.Equal(t, "alice", result.Username)
}

func TestRemoteAuthorityRevokeIsSingleAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	result := newTestRemote(srv.URL).RevokeToken(context.Background(), TokenRevocationRequest{Token: "some-token"})
	require.False(t, result.Revoked)
	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRemoteAuthorityRevokeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/revoke", r.URL.Path)
		writeJSON(w, http.StatusOK, TokenRevocationResponse{Revoked: true, Username: "alice", TokensRevoked: 1, Message: "Token revoked successfully"})
	}))
	defer srv.Close()

	result := newTestRemote(srv.URL).RevokeToken(context.Background(), TokenRevocationRequest{Token: "some-token"})
	require.True(t, result.Revoked)
	require.Equal(t, 1, result.TokensRevoked)
}

func TestFallbackAuthorityGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // remote unreachable

	local, _ := newTestAuthority(time.Hour)

	t.Run("fallback enabled", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, true)
		resp, err := fb.GenerateToken(context.Background(), "alice", "USER")
		require.NoError(t, err)
		require.NotEmpty(t, resp.Token)
		// Issued locally, so the local authority validates it.
		require.True(t, local.ValidateToken(context.Background(), TokenValidationRequest{Token: resp.Token}).Valid)
	})

	t.Run("fallback disabled", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, false)
		_, err := fb.GenerateToken(context.Background(), "alice", "USER")
		require.ErrorIs(t, err, ErrRemoteUnavailable)
	})
}

func TestFallbackAuthorityDoesNotFallBackOnRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	local, _ := newTestAuthority(time.Hour)
	fb := NewFallbackAuthority(newTestRemote(srv.URL), local, true)

	_, err := fb.GenerateToken(context.Background(), "alice", "USER")
	require.ErrorIs(t, err, ErrRemoteRejected)
}

func TestFallbackAuthorityValidateAndRevoke(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // remote unreachable

	local, _ := newTestAuthority(time.Hour)
	issued, err := local.GenerateToken(context.Background(), "alice", "USER")
	require.NoError(t, err)

	t.Run("validate falls back", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, true)
		result := fb.ValidateToken(context.Background(), TokenValidationRequest{Token: issued.Token})
		require.True(t, result.Valid)
		require.Equal(t, "alice", result.Username)
	})

	t.Run("validate fails closed without fallback", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, false)
		result := fb.ValidateToken(context.Background(), TokenValidationRequest{Token: issued.Token})
		require.False(t, result.Valid)
	})

	t.Run("revoke falls back", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, true)
		result := fb.RevokeToken(context.Background(), TokenRevocationRequest{Token: issued.Token})
		require.True(t, result.Revoked)
	})

	t.Run("revoke fails without fallback", func(t *testing.T) {
		fb := NewFallbackAuthority(newTestRemote(srv.URL), local, false)
		result := fb.RevokeToken(context.Background(), TokenRevocationRequest{Token: issued.Token})
		require.False(t, result.Revoked)
	})
}
