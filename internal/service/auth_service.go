package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"mailservice/internal/model"
	"mailservice/pkg/util"
)

var ErrInvalidCredentials = errors.New("incorrect username or password")

// AuthService issues bearer tokens for a single configured operator account.
type AuthService struct {
	username     string
	passwordHash string
	jwtSecret    string
	tokenTTL     time.Duration
}

func NewAuthService(username, password, jwtSecret string, tokenTTL time.Duration) (*AuthService, error) {
	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash operator password: %w", err)
	}
	return &AuthService{
		username:     username,
		passwordHash: hash,
		jwtSecret:    jwtSecret,
		tokenTTL:     tokenTTL,
	}, nil
}

// Login checks the credentials and returns a bearer token.
func (s *AuthService) Login(_ context.Context, username, password string) (*model.Token, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	// bcrypt runs even when the username is wrong.
	passOK := util.CheckPassword(password, s.passwordHash)
	if !userOK || !passOK {
		return nil, ErrInvalidCredentials
	}

	token, err := util.GenerateJWT(s.username, s.jwtSecret, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &model.Token{AccessToken: token, TokenType: "bearer"}, nil
}

// Verify returns the subject of a valid token.
func (s *AuthService) Verify(token string) (string, error) {
	return util.ParseJWT(token, s.jwtSecret)
}
