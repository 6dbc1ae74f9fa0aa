package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"subscription-engine/internal/core/ports/mocks"
	"subscription-engine/pkg/apperror"
	"subscription-engine/pkg/logger"
)

func TestLogin(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewArgon2HashService()
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	tokens := mocks.NewMockTokenService(ctrl)
	svc := NewOperatorAuthService("admin", hash, hasher, tokens, logger.New("disabled", false))

	expiry := time.Now().Add(time.Hour)
	tokens.EXPECT().Generate("admin").Return("jwt-token", expiry, nil)

	token, expiresAt, err := svc.Login(context.Background(), "admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, expiresAt)
}

func TestLogin_BadCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	hasher := NewArgon2HashService()
	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)

	tokens := mocks.NewMockTokenService(ctrl)
	svc := NewOperatorAuthService("admin", hash, hasher, tokens, logger.New("disabled", false))

	for _, tc := range []struct{ username, password string }{
		{"admin", "wrong"},
		{"intruder", "s3cret"},
		{"", ""},
	} {
		_, _, err := svc.Login(context.Background(), tc.username, tc.password)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "SEC_001", appErr.Code)
	}
}
