package command

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/feynlearn/feynlearn-hub/internal/domain/account"
	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
	"github.com/feynlearn/feynlearn-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREDENTIALS AUTH
// Minimal email/password flow. The issued token carries the account id as
// user_id, which is also the profile uid.
// ══════════════════════════════════════════════════════════════════════════════

// Identity is what a verified token says about the caller.
type Identity struct {
	UserID string
	Email  string
	Name   string
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	Issue(id Identity) (string, error)
}

// AuthResult is returned by register and login.
type AuthResult struct {
	Token    string
	Identity Identity
}

// RegisterCommand contains the registration form.
type RegisterCommand struct {
	Email    string
	Password string
	Name     string
}

// Validate validates the command.
func (c RegisterCommand) Validate() error {
	return account.ValidateCredentials(c.Email, c.Password)
}

// LoginCommand contains the login form.
type LoginCommand struct {
	Email    string
	Password string
}

// AuthHandlerConfig contains configuration for AuthHandler.
type AuthHandlerConfig struct {
	BcryptCost int
}

// DefaultAuthHandlerConfig returns default configuration.
func DefaultAuthHandlerConfig() AuthHandlerConfig {
	return AuthHandlerConfig{BcryptCost: bcrypt.DefaultCost}
}

// AuthHandler handles RegisterCommand and LoginCommand.
type AuthHandler struct {
	accounts account.Repository
	profiles *EnsureProfileHandler
	tokens   TokenIssuer
	env      Env
	config   AuthHandlerConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	accounts account.Repository,
	profiles *EnsureProfileHandler,
	tokens TokenIssuer,
	env Env,
	config AuthHandlerConfig,
) *AuthHandler {
	if config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost {
		config = DefaultAuthHandlerConfig()
	}
	return &AuthHandler{
		accounts: accounts,
		profiles: profiles,
		tokens:   tokens,
		env:      env.withDefaults(),
		config:   config,
	}
}

// Register creates the account, provisions the profile and issues a token.
func (h *AuthHandler) Register(ctx context.Context, cmd RegisterCommand) (*AuthResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register: failed to hash password: %w", err)
	}

	acc := account.New(cmd.Email, cmd.Name, string(hash), h.env.now())
	if err := h.accounts.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	id := Identity{UserID: acc.ID, Email: acc.Email, Name: acc.Name}

	if h.profiles != nil {
		if _, err := h.profiles.Handle(ctx, EnsureProfileCommand{
			UserID: id.UserID,
			Email:  id.Email,
			Name:   id.Name,
		}); err != nil {
			// The profile is provisioned lazily on first access anyway.
			h.env.Log.Warn("profile provisioning after register failed",
				logger.UserID(id.UserID),
				logger.Err(err),
			)
		}
	}

	token, err := h.tokens.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("register: failed to issue token: %w", err)
	}

	h.env.Log.Info("account registered", logger.UserID(id.UserID))
	return &AuthResult{Token: token, Identity: id}, nil
}

// Login verifies the password and issues a token.
func (h *AuthHandler) Login(ctx context.Context, cmd LoginCommand) (*AuthResult, error) {
	if account.NormalizeEmail(cmd.Email) == "" || cmd.Password == "" {
		return nil, fmt.Errorf("login: %w", shared.Validation("auth", "Login", "email and password are required"))
	}

	acc, err := h.accounts.GetByEmail(ctx, account.NormalizeEmail(cmd.Email))
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, fmt.Errorf("login: %w", shared.ErrBadCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(cmd.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, fmt.Errorf("login: %w", shared.ErrBadCredentials)
		}
		return nil, fmt.Errorf("login: %w", err)
	}

	id := Identity{UserID: acc.ID, Email: acc.Email, Name: acc.Name}
	token, err := h.tokens.Issue(id)
	if err != nil {
		return nil, fmt.Errorf("login: failed to issue token: %w", err)
	}
	return &AuthResult{Token: token, Identity: id}, nil
}
