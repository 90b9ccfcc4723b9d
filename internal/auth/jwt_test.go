package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	token, err := GenerateJWT("secret", "student-42", time.Hour)
	require.NoError(t, err)

	subject, err := ValidateJWT("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "student-42", subject)
}

func TestValidateRejects(t *testing.T) {
	good, err := GenerateJWT("secret", "student-42", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateJWT("secret", "student-42", -time.Minute)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"wrong secret", "other", good},
		{"expired", "secret", expired},
		{"garbage", "secret", "not.a.token"},
		{"missing subject", "secret", noSubject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateJWT(tt.secret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	_, err := GenerateJWT("", "student-42", time.Hour)
	assert.Error(t, err)
}
