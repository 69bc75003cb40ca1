// Package account содержит учётные данные для входа по email и паролю.
// Профиль и прогрессия живут в пакете profile; здесь только то, что нужно
// для выдачи токена.
package account

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/feynlearn/feynlearn-hub/internal/domain/shared"
)

// MinPasswordLength - минимальная длина пароля.
const MinPasswordLength = 6

// Account - учётная запись. ID совпадает с UID профиля.
type Account struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeEmail приводит email к виду, в котором он хранится.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateCredentials проверяет email и пароль до хеширования.
func ValidateCredentials(email, password string) error {
	if NormalizeEmail(email) == "" || password == "" {
		return shared.Validation("auth", "Register", "email and password are required")
	}
	if _, err := mail.ParseAddress(NormalizeEmail(email)); err != nil {
		return shared.Validation("auth", "Register", "email is not valid")
	}
	if len(password) < MinPasswordLength {
		return shared.Validation("auth", "Register", "password must be at least 6 characters")
	}
	return nil
}

// New создаёт учётную запись с уже посчитанным хешем пароля.
func New(email, name, passwordHash string, now time.Time) *Account {
	email = NormalizeEmail(email)
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	return &Account{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}
}

// Repository хранит учётные записи.
type Repository interface {
	// Create возвращает ErrEmailTaken, если email уже занят.
	Create(ctx context.Context, a *Account) error

	// GetByEmail возвращает ошибку вида ErrNotFound, если записи нет.
	GetByEmail(ctx context.Context, email string) (*Account, error)
}
