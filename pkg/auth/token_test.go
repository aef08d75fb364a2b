package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teevo/fulfilment-backend/pkg/config"
	"github.com/teevo/fulfilment-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{Secret: "secret", Issuer: "teevo", ExpirationMinutes: 30}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(cfg, now, AccessTokenPayload{
		UserID: userID,
		Email:  "seller@example.com",
		Role:   enums.MemberRoleAdmin,
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)

	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "seller@example.com", claims.Email)
	assert.True(t, claims.IsAdmin())
	assert.Equal(t, cfg.Issuer, claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestParseAccessTokenInvalidSignature(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token+"x")
	assert.Error(t, err)
}

func TestParseAccessTokenWrongIssuer(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleUser})
	require.NoError(t, err)

	cfg.Issuer = "someone-else"
	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)
}

func TestParseAccessTokenExpired(t *testing.T) {
	cfg := testJWTConfig()
	token, err := MintAccessToken(cfg, time.Now().Add(-time.Hour), AccessTokenPayload{UserID: uuid.New(), Role: enums.MemberRoleUser})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestMintAccessTokenRejectsInvalidPayload(t *testing.T) {
	cfg := testJWTConfig()

	_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: ""})
	assert.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{Role: enums.MemberRoleUser})
	assert.Error(t, err)
}

func TestIsAdminNilSafe(t *testing.T) {
	var claims *AccessTokenClaims
	assert.False(t, claims.IsAdmin())
	assert.False(t, (&AccessTokenClaims{Role: enums.MemberRoleUser}).IsAdmin())
}
