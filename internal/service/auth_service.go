package service

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/rs/zerolog"

	"subscription-engine/internal/core/ports"
	"subscription-engine/pkg/apperror"
)

// OperatorAuthService authenticates operators against the config-held
// credential and issues JWTs for the management API.
type OperatorAuthService struct {
	username     string
	passwordHash string
	hasher       ports.HashService
	tokens       ports.TokenService
	log          zerolog.Logger
}

func NewOperatorAuthService(username, passwordHash string, hasher ports.HashService, tokens ports.TokenService, log zerolog.Logger) *OperatorAuthService {
	return &OperatorAuthService{
		username:     username,
		passwordHash: passwordHash,
		hasher:       hasher,
		tokens:       tokens,
		log:          log.With().Str("component", "auth_service").Logger(),
	}
}

func (s *OperatorAuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	// Both checks always run so a wrong username costs the same as a
	// wrong password.
	usernameMatch := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passwordMatch, err := s.hasher.Verify(password, s.passwordHash)
	if err != nil {
		s.log.Error().Err(err).Msg("operator credential hash is malformed")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}
	if !usernameMatch || !passwordMatch {
		s.log.Warn().Str("username", username).Msg("failed operator login")
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiresAt, err := s.tokens.Generate(username)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(err)
	}

	s.log.Info().Str("username", username).Msg("operator logged in")
	return token, expiresAt, nil
}
