package service

import (
	"context"
	"testing"
	"time"

	"github.com/Megho-git/ParkEase/internal/apperror"
	"github.com/Megho-git/ParkEase/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registration(email string) domain.RegisterUserDTO {
	return domain.RegisterUserDTO{
		Email:    email,
		Password: "s3cret-pass",
		FullName: "Alice Sen",
		Address:  "5 Park Street, Kolkata",
		PinCode:  "700016",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.auth.Register(ctx, registration(" Alice@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.Empty(t, user.Password)
	assert.False(t, user.Phone.Valid)

	_, err = f.auth.Register(ctx, registration("ALICE@example.com"))
	assert.True(t, apperror.IsKind(err, apperror.KindConflict))

	resp, err := f.auth.Login(ctx, domain.LoginUserDTO{Email: "alice@EXAMPLE.com", Password: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, resp.UserID)

	id, err := f.auth.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.Identity{UserID: user.ID, Role: domain.RoleUser}, id)

	_, err = f.auth.Login(ctx, domain.LoginUserDTO{Email: "alice@example.com", Password: "wrong"})
	assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, domain.LoginUserDTO{Email: "nobody@example.com", Password: "wrong"})
	assert.True(t, apperror.IsKind(err, apperror.KindUnauthorized))
}

func TestValidateTokenRejects(t *testing.T) {
	f := newFixture(t)

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := map[string]string{
		"garbage":      "abc.def",
		"wrong secret": sign(jwt.MapClaims{"sub": "1", "role": "user", "exp": exp}, "other-secret-0123456789012345"),
		"expired":      sign(jwt.MapClaims{"sub": "1", "role": "user", "exp": time.Now().Add(-time.Minute).Unix()}, "jwt-secret-for-tests-0123456789"),
		"unknown role": sign(jwt.MapClaims{"sub": "1", "role": "root", "exp": exp}, "jwt-secret-for-tests-0123456789"),
		"bad subject":  sign(jwt.MapClaims{"sub": "x", "role": "user", "exp": exp}, "jwt-secret-for-tests-0123456789"),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.ValidateToken(tok)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user, err := f.auth.Register(ctx, registration("alice@example.com"))
	require.NoError(t, err)

	updated, err := f.auth.UpdateProfile(ctx, user.ID, domain.UpdateProfileDTO{
		FullName: "Alice S", Address: "New Town", PinCode: "700156", Phone: "9830000000",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Town", updated.Address)
	assert.Equal(t, "9830000000", updated.Phone.String)

	profile, err := f.auth.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice S", profile.FullName)
	assert.Empty(t, profile.Password)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.auth.EnsureAdmin(ctx, "Admin@ParkEase.test", "admin-pass"))
	require.NoError(t, f.auth.EnsureAdmin(ctx, "admin@parkease.test", "other-pass"))

	users, err := f.auth.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, domain.RoleAdmin, users[0].Role)

	_, err = f.auth.Login(ctx, domain.LoginUserDTO{Email: "admin@parkease.test", Password: "admin-pass"})
	assert.NoError(t, err)
}
