// Package auth provides user registration, credential verification, and
// JWT issuance. Every login attempt, successful or not, lands in the
// audit trail.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"

	"github.com/provenlabs/opsledger/internal/audit"
	"github.com/provenlabs/opsledger/internal/domain"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserInactive       = errors.New("auth: user is inactive")
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Service provides authentication operations.
type Service struct {
	users     domain.UserRepository
	auditor   *audit.Logger
	jwtSecret string
	tokenTTL  time.Duration
}

func NewService(users domain.UserRepository, auditor *audit.Logger, jwtSecret string, tokenTTL time.Duration) *Service {
	return &Service{
		users:     users,
		auditor:   auditor,
		jwtSecret: jwtSecret,
		tokenTTL:  tokenTTL,
	}
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
	IsAdmin  bool
}

// Register creates a new user. The password is hashed with argon2id
// before storage; the plaintext never leaves this function.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, fmt.Errorf("auth.Service.Register: username and password are required: %w", domain.ErrPreconditionFailed)
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Register: %w", err)
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:             uuid.New(),
		Username:       in.Username,
		Email:          in.Email,
		HashedPassword: hash,
		FullName:       in.FullName,
		IsActive:       true,
		IsAdmin:        in.IsAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("auth.Service.Register: %w", err)
	}

	actorID := user.ID
	if err := s.auditor.Log(ctx, audit.Event{
		Type:          audit.EventUserCreated,
		ActorID:       &actorID,
		ActorUsername: user.Username,
		ResourceType:  "user",
		ResourceID:    &actorID,
		Action:        fmt.Sprintf("Created user %q", user.Username),
		Details:       map[string]any{"is_admin": user.IsAdmin},
		Success:       true,
	}); err != nil {
		return nil, fmt.Errorf("auth.Service.Register: %w", err)
	}

	return user, nil
}

// Login verifies credentials and returns the user with a signed token.
// The failure audit event never reveals whether the username exists.
func (s *Service) Login(ctx context.Context, username, password, ipAddress string) (*domain.User, string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || !verifyPassword(password, user.HashedPassword) {
		s.logLoginFailure(ctx, username, ipAddress)
		return nil, "", fmt.Errorf("auth.Service.Login: %w", ErrInvalidCredentials)
	}

	if !user.IsActive {
		s.logLoginFailure(ctx, username, ipAddress)
		return nil, "", fmt.Errorf("auth.Service.Login: %w", ErrUserInactive)
	}

	token, err := IssueToken(s.jwtSecret, user.ID, user.Username, user.IsAdmin, s.tokenTTL)
	if err != nil {
		return nil, "", fmt.Errorf("auth.Service.Login: %w", err)
	}

	actorID := user.ID
	if err := s.auditor.Log(ctx, audit.Event{
		Type:          audit.EventUserLogin,
		ActorID:       &actorID,
		ActorUsername: user.Username,
		ResourceType:  "user",
		ResourceID:    &actorID,
		Action:        fmt.Sprintf("User %q logged in", user.Username),
		IPAddress:     ipAddress,
		Success:       true,
	}); err != nil {
		return nil, "", fmt.Errorf("auth.Service.Login: %w", err)
	}

	return user, token, nil
}

// Authenticate resolves a bearer token to the current user record. Used
// by the request middleware; the stored record wins over stale claims.
func (s *Service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := ValidateToken(s.jwtSecret, token)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Authenticate: %w", ErrInvalidToken)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.Service.Authenticate: %w", ErrInvalidToken)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("auth.Service.Authenticate: %w", ErrUserInactive)
	}

	return user, nil
}

func (s *Service) logLoginFailure(ctx context.Context, username, ipAddress string) {
	if err := s.auditor.Log(ctx, audit.Event{
		Type:         audit.EventUserLoginFailed,
		ResourceType: "user",
		Action:       fmt.Sprintf("Failed login for %q", username),
		IPAddress:    ipAddress,
		Success:      false,
		ErrorMessage: "invalid credentials",
	}); err != nil {
		log.Error().Err(err).Msg("auth: audit append failed")
	}
}

// hashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// verifyPassword checks a password against an argon2id hash.
func verifyPassword(password, encoded string) bool {
	saltHex, hashHex, ok := strings.Cut(encoded, "$")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
