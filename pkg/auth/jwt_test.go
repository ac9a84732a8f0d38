package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", "hospital-api", time.Hour)
	id := uuid.New()

	token, expiresAt, err := svc.GenerateAccessToken(id, "doctor", "doc@example.com", "Dr. Doc")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "doctor", claims.Role)
	assert.Equal(t, "doc@example.com", claims.Email)
	assert.Equal(t, "Dr. Doc", claims.Name)

	subject, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, id, subject)
}

func TestValidateTokenRejects(t *testing.T) {
	svc := NewJWTService("secret", "hospital-api", time.Hour)
	id := uuid.New()

	expired := &jwtService{
		secret: []byte("secret"),
		issuer: "hospital-api",
		ttl:    time.Minute,
		now:    func() time.Time { return time.Now().Add(-time.Hour) },
	}
	expiredToken, _, err := expired.GenerateAccessToken(id, "admin", "a@example.com", "A")
	require.NoError(t, err)

	otherSecret, _, err := NewJWTService("other", "hospital-api", time.Hour).GenerateAccessToken(id, "admin", "a@example.com", "A")
	require.NoError(t, err)

	otherIssuer, _, err := NewJWTService("secret", "elsewhere", time.Hour).GenerateAccessToken(id, "admin", "a@example.com", "A")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role:             "admin",
		RegisteredClaims: jwt.RegisteredClaims{Subject: id.String(), Issuer: "hospital-api"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expiredToken,
		"other secret": otherSecret,
		"other issuer": otherIssuer,
		"alg none":     noneAlg,
		"garbage":      "not-a-token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDefaultTTL(t *testing.T) {
	svc := NewJWTService("secret", "hospital-api", 0)
	_, expiresAt, err := svc.GenerateAccessToken(uuid.New(), "patient", "p@example.com", "P")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), expiresAt, time.Minute)
}
