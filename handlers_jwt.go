package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// The /api/v1/jwt endpoints are the centralized authority surface. A
// deployment of this binary can serve as the remote authority that other
// instances reach through RemoteAuthority; they always answer from the local
// authority and its store.

type jwtGenerateRequest struct {
	Username string `json:"username" validate:"required"`
	Role     string `json:"role,omitempty"`
}

func writeEnvelopeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success":   false,
		"message":   message,
		"errorCode": code,
		"timestamp": time.Now(),
	})
}

// HandleJWTGenerate issues a token for a known account. The role embedded in
// the token comes from the account directory; a role supplied in the request
// is ignored. Responses use the success/data envelope.
// POST /api/v1/jwt/generate
func (a *App) HandleJWTGenerate(w http.ResponseWriter, r *http.Request) {
	var req jwtGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeEnvelopeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username is required")
		return
	}

	logger.Infof("Token generation request for user: %s", req.Username)

	account, ok := a.Users.Lookup(req.Username)
	if !ok {
		logger.Warnf("Token generation rejected for unknown user: %s", req.Username)
		writeEnvelopeError(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "Unknown user")
		return
	}

	resp, err := a.local.GenerateToken(r.Context(), account.Username, account.PrimaryRole())
	if err != nil {
		logger.Errorf("Error generating token for user %s: %v", req.Username, err)
		writeEnvelopeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error occurred")
		return
	}

	writeSuccess(w, http.StatusOK, "JWT token generated successfully", resp)
}

// HandleJWTValidate validates a token carried in the request body.
// POST /api/v1/jwt/validate
func (a *App) HandleJWTValidate(w http.ResponseWriter, r *http.Request) {
	var req TokenValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Token is required")
		return
	}
	writeJSON(w, http.StatusOK, a.local.ValidateToken(r.Context(), req))
}

// HandleJWTValidateHeader is the alternate validate entrypoint taking the
// token from the Authorization header.
// GET /api/v1/jwt/validate
func (a *App) HandleJWTValidateHeader(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "INVALID_HEADER", "Invalid Authorization header format")
		return
	}
	writeJSON(w, http.StatusOK, a.local.ValidateToken(r.Context(), TokenValidationRequest{Token: token}))
}

// HandleJWTRevoke revokes a single token or all tokens of its owner.
// POST /api/v1/jwt/revoke
func (a *App) HandleJWTRevoke(w http.ResponseWriter, r *http.Request) {
	var req TokenRevocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if err := a.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Token is required")
		return
	}
	result := a.local.RevokeToken(r.Context(), req)
	logger.Infof("Token revocation completed - Revoked: %v", result.Revoked)
	writeJSON(w, http.StatusOK, result)
}

// HandleJWTStatus reports liveness and storage mode of the token service.
// GET /api/v1/jwt/status
func (a *App) HandleJWTStatus(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "JWT service status retrieved successfully", map[string]interface{}{
		"service":     "Centralized JWT Service",
		"status":      "RUNNING",
		"storageType": a.storageType,
		"storeOnline": a.store.Ping(r.Context()),
		"uptime":      time.Since(a.startedAt).String(),
		"timestamp":   time.Now(),
	})
}

// HandleJWTUserStats reports the active-token count for a user.
// GET /api/v1/jwt/user/{username}/stats
func (a *App) HandleJWTUserStats(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	writeSuccess(w, http.StatusOK, "User token statistics retrieved successfully", map[string]interface{}{
		"username":         username,
		"activeTokenCount": a.local.UserActiveTokenCount(r.Context(), username),
		"timestamp":        time.Now(),
	})
}
