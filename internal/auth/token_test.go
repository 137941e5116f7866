package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *TokenManager {
	return NewTokenManager("test-secret", 15*time.Minute, 24*time.Hour)
}

func TestGenerateAndValidatePair(t *testing.T) {
	manager := newTestManager()
	principal := Principal{ID: uuid.New(), Kind: KindMember}

	pair, err := manager.GeneratePair(principal)
	require.NoError(t, err)
	require.NotEmpty(t, pair.Access)
	require.NotEmpty(t, pair.Refresh)
	require.NotEmpty(t, pair.RefreshJTI)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	got, _, err := manager.Validate(pair.Access, TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, principal, got)

	got, jti, err := manager.Validate(pair.Refresh, TokenRefresh)
	require.NoError(t, err)
	assert.Equal(t, principal, got)
	assert.Equal(t, pair.RefreshJTI, jti)
}

func TestValidateRejectsWrongTokenType(t *testing.T) {
	manager := newTestManager()
	pair, err := manager.GeneratePair(Principal{ID: uuid.New(), Kind: KindStore})
	require.NoError(t, err)

	_, _, err = manager.Validate(pair.Refresh, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = manager.Validate(pair.Access, TokenRefresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	pair, err := newTestManager().GeneratePair(Principal{ID: uuid.New(), Kind: KindAdmin})
	require.NoError(t, err)

	other := NewTokenManager("other-secret", 15*time.Minute, 24*time.Hour)
	_, _, err = other.Validate(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateExpiredToken(t *testing.T) {
	manager := newTestManager()
	issued := time.Now().Add(-time.Hour)
	manager.WithNow(func() time.Time { return issued })

	pair, err := manager.GeneratePair(Principal{ID: uuid.New(), Kind: KindCompany})
	require.NoError(t, err)

	manager.WithNow(time.Now)
	_, _, err = manager.Validate(pair.Access, TokenAccess)
	assert.ErrorIs(t, err, ErrExpiredToken)

	// The refresh lifetime is longer; it still validates.
	_, _, err = manager.Validate(pair.Refresh, TokenRefresh)
	assert.NoError(t, err)
}
