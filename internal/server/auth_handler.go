package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/jonathan/content-autopilot/internal/config"
	"github.com/jonathan/content-autopilot/internal/types"
)

// KeyVerifier checks a plaintext key against a stored hash.
type KeyVerifier interface {
	VerifyKey(key, storedHash string) bool
}

// AuthHandler exchanges organization API keys for bearer tokens.
type AuthHandler struct {
	keys       KeyStore
	verifier   KeyVerifier
	jwtService *JWTService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(keys KeyStore, apiKeys *config.APIKeyConfig, jwtService *JWTService) *AuthHandler {
	h := &AuthHandler{keys: keys, jwtService: jwtService}
	if apiKeys != nil {
		h.verifier = apiKeys
	}
	return h
}

// IssueToken handles POST /auth/token.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req types.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, extractValidationErrors(err))
		return
	}

	if err := h.authenticate(r.Context(), req.OrganizationID, req.APIKey); err != nil {
		if status := HTTPStatus(err); status == http.StatusUnauthorized {
			writeError(w, status, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to verify credentials")
		return
	}

	token, expiresAt, err := h.jwtService.GenerateToken(req.OrganizationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(types.TokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (h *AuthHandler) authenticate(ctx context.Context, orgID uuid.UUID, key string) error {
	if h.keys == nil || h.verifier == nil {
		return &ErrInvalidCredentials{}
	}
	keys, err := h.keys.ListActiveAPIKeys(ctx, orgID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if h.verifier.VerifyKey(key, k.KeyHash) {
			return nil
		}
	}
	return &ErrInvalidCredentials{}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
