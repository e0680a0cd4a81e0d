package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0111v/projeto-faculdade/pkg/config"
	"github.com/0111v/projeto-faculdade/pkg/enums"
)

var testCfg = config.JWTConfig{Secret: "secret", Issuer: "storefront", ExpirationMinutes: 30}

func TestMintAndParseAccessToken(t *testing.T) {
	now := time.Now().UTC()
	userID := uuid.New()

	token, err := MintAccessToken(testCfg, now, AccessTokenPayload{UserID: userID, Role: enums.UserRoleAdmin, JTI: " session-1 "})
	require.NoError(t, err)

	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, enums.UserRoleAdmin, claims.Role)
	assert.Equal(t, "session-1", claims.ID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "storefront", claims.Issuer)
	assert.WithinDuration(t, now.Add(30*time.Minute), claims.ExpiresAt.Time, time.Second)
}

func TestMintAccessTokenGeneratesJTI(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)
	claims, err := ParseAccessToken(testCfg, token)
	require.NoError(t, err)
	_, err = uuid.Parse(claims.ID)
	assert.NoError(t, err)
}

func TestMintAccessTokenValidation(t *testing.T) {
	good := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer}
	cases := map[string]struct {
		cfg     config.JWTConfig
		payload AccessTokenPayload
	}{
		"no secret":  {config.JWTConfig{Issuer: "storefront", ExpirationMinutes: 5}, good},
		"no issuer":  {config.JWTConfig{Secret: "s", ExpirationMinutes: 5}, good},
		"no expiry":  {config.JWTConfig{Secret: "s", Issuer: "storefront"}, good},
		"no user":    {testCfg, AccessTokenPayload{Role: enums.UserRoleCustomer}},
		"bogus role": {testCfg, AccessTokenPayload{UserID: uuid.New(), Role: "owner"}},
	}
	for name, tc := range cases {
		_, err := MintAccessToken(tc.cfg, time.Now(), tc.payload)
		assert.Error(t, err, name)
	}
}

func TestParseAccessTokenRejectsTampering(t *testing.T) {
	token, err := MintAccessToken(testCfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer})
	require.NoError(t, err)

	_, err = ParseAccessToken(testCfg, token+"x")
	assert.Error(t, err)

	otherSecret := testCfg
	otherSecret.Secret = "different"
	_, err = ParseAccessToken(otherSecret, token)
	assert.Error(t, err)

	otherIssuer := testCfg
	otherIssuer.Issuer = "someone-else"
	_, err = ParseAccessToken(otherIssuer, token)
	assert.Error(t, err)
	_, err = ParseAccessTokenAllowExpired(otherIssuer, token)
	assert.Error(t, err, "issuer is checked even when expiry is not")
}

func TestParseAccessTokenRejectsForeignClaims(t *testing.T) {
	sign := func(claims AccessTokenClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testCfg.Secret))
		require.NoError(t, err)
		return raw
	}
	userID := uuid.New()
	registered := jwt.RegisteredClaims{
		Issuer:    testCfg.Issuer,
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}

	_, err := ParseAccessToken(testCfg, sign(AccessTokenClaims{UserID: userID, Role: "root", RegisteredClaims: registered}))
	assert.Error(t, err, "unknown role")

	mismatched := registered
	mismatched.Subject = uuid.NewString()
	_, err = ParseAccessToken(testCfg, sign(AccessTokenClaims{UserID: userID, Role: enums.UserRoleCustomer, RegisteredClaims: mismatched}))
	assert.Error(t, err, "subject mismatch")

	noExpiry := registered
	noExpiry.ExpiresAt = nil
	_, err = ParseAccessToken(testCfg, sign(AccessTokenClaims{UserID: userID, Role: enums.UserRoleCustomer, RegisteredClaims: noExpiry}))
	assert.Error(t, err, "expiry is mandatory")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessTokenClaims{UserID: userID, Role: enums.UserRoleAdmin, RegisteredClaims: registered}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, none)
	assert.Error(t, err, "alg none")
}

func TestParseAccessTokenExpiry(t *testing.T) {
	payload := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleCustomer, JTI: "old-session"}

	// inside the skew allowance
	fresh, err := MintAccessToken(testCfg, time.Now().Add(-30*time.Minute-10*time.Second), payload)
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, fresh)
	assert.NoError(t, err)

	stale, err := MintAccessToken(testCfg, time.Now().Add(-time.Hour), payload)
	require.NoError(t, err)
	_, err = ParseAccessToken(testCfg, stale)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	claims, err := ParseAccessTokenAllowExpired(testCfg, stale)
	require.NoError(t, err)
	assert.Equal(t, "old-session", claims.ID)
}
