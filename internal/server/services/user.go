// Package services contains server-side business logic. This file implements
// UserService, which handles registration, login and issuing access tokens.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/timn835/crypto-chat/internal/common"
	"github.com/timn835/crypto-chat/internal/cryptox"
	"github.com/timn835/crypto-chat/internal/models"
	"github.com/timn835/crypto-chat/internal/server/auth"
	"github.com/timn835/crypto-chat/internal/server/config"
	"github.com/timn835/crypto-chat/internal/server/repositories/repomanager"
	"github.com/timn835/crypto-chat/internal/server/repositories/users"
)

const (
	MaxHandleLength   = 20
	MaxPasswordLength = 30
	MaxEmailLength    = 99
)

var emailRegexp = regexp.MustCompile(`(?i)^([a-z\d_-]+)(((\.[a-z\d_-]+)|(-[a-z\d_-]+))+)?(\+[a-z\d_-]+)?@([a-z\d-]+)\.([a-z]{2,8})(\.[a-z]{2,8})?$`)

// AuthResult is returned by a successful Register or Login.
type AuthResult struct {
	UserID      string
	Handle      string
	AccessToken string
}

// UserService provides authentication-related operations:
// - Register: create users and their handle index entry
// - Login: verify credentials and mint an access token
type UserService struct {
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Register creates a user. The handle is unique case-insensitively; a taken
// handle yields common.ErrHandleTaken and malformed input common.ErrValidation.
func (s *UserService) Register(ctx context.Context, handle, password, email string) (*AuthResult, error) {
	if err := validateRegistration(handle, password, email); err != nil {
		return nil, err
	}

	repo := s.repomanager.Users()
	key := strings.ToLower(handle)

	_, err := repo.GetIDByHandle(ctx, key)
	switch {
	case err == nil:
		return nil, common.ErrHandleTaken
	case !errors.Is(err, common.ErrorNotFound):
		return nil, fmt.Errorf("error checking handle: %w", err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{ID: uuid.NewString(), Handle: handle, Hash: hash, Email: email}
	if err := repo.Store(ctx, user); err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	if err := repo.StoreHandle(ctx, key, user.ID); err != nil {
		return nil, fmt.Errorf("error storing handle: %w", err)
	}

	return s.authResult(user)
}

// Login verifies the handle and password. Every credential problem collapses
// into common.ErrorUnauthorized.
func (s *UserService) Login(ctx context.Context, handle, password string) (*AuthResult, error) {
	if handle == "" || password == "" ||
		utf8.RuneCountInString(handle) > MaxHandleLength ||
		utf8.RuneCountInString(password) > MaxPasswordLength {
		return nil, common.ErrorUnauthorized
	}

	repo := s.repomanager.Users()
	id, err := repo.GetIDByHandle(ctx, strings.ToLower(handle))
	if err != nil {
		return nil, loginError(err)
	}
	user, err := credentialSource(repo).GetByID(ctx, id)
	if err != nil {
		return nil, loginError(err)
	}

	ok, err := cryptox.VerifyPassword(user.Hash, password)
	if err != nil || !ok {
		return nil, common.ErrorUnauthorized
	}

	return s.authResult(user)
}

// backedRepository is implemented by caching decorators that do not keep
// password hashes.
type backedRepository interface {
	Backing() users.Repository
}

func credentialSource(repo users.Repository) users.Repository {
	if b, ok := repo.(backedRepository); ok {
		return b.Backing()
	}
	return repo
}

func (s *UserService) authResult(user *models.User) (*AuthResult, error) {
	token, err := auth.GenerateToken(user.ID, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &AuthResult{UserID: user.ID, Handle: user.Handle, AccessToken: token}, nil
}

func loginError(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrorUnauthorized
	}
	return common.ErrorInternal
}

func validateRegistration(handle, password, email string) error {
	switch {
	case handle == "" || password == "":
		return fmt.Errorf("%w: handle and password are required", common.ErrValidation)
	case utf8.RuneCountInString(handle) > MaxHandleLength:
		return fmt.Errorf("%w: handle is longer than %d characters", common.ErrValidation, MaxHandleLength)
	case utf8.RuneCountInString(password) > MaxPasswordLength:
		return fmt.Errorf("%w: password is longer than %d characters", common.ErrValidation, MaxPasswordLength)
	case utf8.RuneCountInString(email) > MaxEmailLength:
		return fmt.Errorf("%w: email is longer than %d characters", common.ErrValidation, MaxEmailLength)
	case email != "" && !emailRegexp.MatchString(email):
		return fmt.Errorf("%w: invalid email", common.ErrValidation)
	}
	return nil
}
