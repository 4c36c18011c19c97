package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "marketroles/pkg/domain-errors"
)

var jwtService = NewJWTService(
	"test-signing-key",
	"test-issuer",
	"test-audience",
)

const supplierGLN = "5799999933318"

func Test_GenerateActorToken(t *testing.T) {
	token, err := jwtService.GenerateActorToken(supplierGLN, []string{"DDQ"}, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, supplierGLN, claims.ActorGLN)
	assert.Equal(t, []string{"DDQ"}, claims.MarketRoles)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateActorToken(supplierGLN, []string{"DDQ"}, -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", err.Error())
}

func Test_ValidateToken_WrongAudience(t *testing.T) {
	other := NewJWTService("test-signing-key", "test-issuer", "other-audience")
	token, err := other.GenerateActorToken(supplierGLN, []string{"DDQ"}, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateToken_RejectsInvalidActorGLN(t *testing.T) {
	token, err := jwtService.GenerateActorToken("5799999933319", []string{"DDQ"}, time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token actor is not a valid GLN", err.Error())
}

func Test_Adapter(t *testing.T) {
	token, err := jwtService.GenerateActorToken(supplierGLN, []string{"DDQ"}, time.Hour)
	require.NoError(t, err)

	claims, err := NewAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, supplierGLN, claims.ActorGLN)
	assert.Equal(t, []string{"DDQ"}, claims.Roles)
}

func Test_Adapter_NormalizesRoles(t *testing.T) {
	token, err := jwtService.GenerateActorToken(supplierGLN, []string{" ddq", "DDQ", "ddz"}, time.Hour)
	require.NoError(t, err)

	claims, err := NewAdapter(jwtService).ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, []string{"DDQ", "DDZ"}, claims.Roles)
}
