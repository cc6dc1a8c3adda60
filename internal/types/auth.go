package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// TokenRequest exchanges an organization API key for a bearer token.
type TokenRequest struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	APIKey         string    `json:"api_key" validate:"required,min=16"`
}

// TokenResponse carries an issued bearer token.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateAPIKeyResponse returns a freshly generated key. The plaintext key is
// shown once and never stored.
type CreateAPIKeyResponse struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Name           string    `json:"name"`
	Key            string    `json:"key"`
}

// Validate validates the TokenRequest using the validator.
func (r *TokenRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
