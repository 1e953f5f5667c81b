package main

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HandleLogin authenticates credentials and issues a token through the
// configured authority (local, or centralized with optional fallback).
// POST /api/v1/auth/login
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username and password are required")
		return
	}

	account, err := a.Users.Authenticate(req.Username, req.Password)
	if err != nil {
		logger.Warnf("Authentication failed for user: %s", req.Username)
		writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}

	resp, err := a.authority.GenerateToken(r.Context(), account.Username, account.PrimaryRole())
	if err != nil {
		if errors.Is(err, ErrRemoteUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Token service is unavailable")
			return
		}
		logger.Errorf("Error generating token for user %s: %v", account.Username, err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to generate token")
		return
	}

	logger.Infof("Login successful for user: %s", account.Username)
	writeJSON(w, http.StatusOK, resp)
}

// HandleLogout revokes the presented bearer token. Revocation is idempotent
// at the HTTP layer: an already-revoked token answers 200 with revoked=false.
// POST /api/v1/auth/logout
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Bearer token is required")
		return
	}
	result := a.authority.RevokeToken(r.Context(), TokenRevocationRequest{Token: token, Reason: "logout"})
	writeJSON(w, http.StatusOK, result)
}

// HandleValidate checks a token through the configured authority.
// POST /api/v1/auth/validate
func (a *App) HandleValidate(w http.ResponseWriter, r *http.Request) {
	var req TokenValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Token is required")
		return
	}
	writeJSON(w, http.StatusOK, a.authority.ValidateToken(r.Context(), req))
}
