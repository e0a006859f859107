package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-key-for-testing-only"

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery"), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService("admin@example.com", string(hash), testSecret, time.Hour)
}

func TestLogin_Success(t *testing.T) {
	// ARRANGE
	svc := newTestAuthService(t)

	// ACT
	resp, err := svc.Login(context.Background(), "Admin@Example.com ", "correct horse battery")

	// ASSERT
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)

	claims, err := svc.VerifyToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc := newTestAuthService(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "admin@example.com", password: "wrong horse battery"},
		{name: "wrong email", email: "root@example.com", password: "correct horse battery"},
		{name: "empty", email: "", password: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(context.Background(), tt.email, tt.password)
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestLogin_NoHashConfigured(t *testing.T) {
	svc := NewAuthService("admin@example.com", "", testSecret, time.Hour)

	_, err := svc.Login(context.Background(), "admin@example.com", "")

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestVerifyToken_Rejects(t *testing.T) {
	svc := newTestAuthService(t)
	resp, err := svc.Login(context.Background(), "admin@example.com", "correct horse battery")
	require.NoError(t, err)

	t.Run("tampered", func(t *testing.T) {
		_, err := svc.VerifyToken(resp.Token + "x")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other secret", func(t *testing.T) {
		other := NewAuthService("admin@example.com", "", "another-secret", time.Hour)
		_, err := other.VerifyToken(resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		defer func() { svc.now = time.Now }()
		_, err := svc.VerifyToken(resp.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong role", func(t *testing.T) {
		claims := Claims{
			Role: "viewer",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = svc.VerifyToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
