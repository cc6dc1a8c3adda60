package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPIKeyConfig_HashAndVerify(t *testing.T) {
	cfg := &APIKeyConfig{BcryptCost: 4, Pepper: "pepper"}

	hash, err := cfg.HashKey("ak_live_123")
	require.NoError(t, err)
	assert.NotEqual(t, "ak_live_123", hash)

	assert.True(t, cfg.VerifyKey("ak_live_123", hash))
	assert.False(t, cfg.VerifyKey("ak_live_124", hash))

	noPepper := &APIKeyConfig{BcryptCost: 4}
	assert.False(t, noPepper.VerifyKey("ak_live_123", hash), "pepper must be part of the hash")
}

func TestNewAPIKeyConfig(t *testing.T) {
	t.Setenv("API_KEY_BCRYPT_COST", "")
	t.Setenv("API_KEY_PEPPER", "")

	cfg, err := NewAPIKeyConfig()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.BcryptCost)

	t.Setenv("API_KEY_BCRYPT_COST", "20")
	_, err = NewAPIKeyConfig()
	assert.Error(t, err)

	t.Setenv("API_KEY_BCRYPT_COST", "abc")
	_, err = NewAPIKeyConfig()
	assert.Error(t, err)
}
