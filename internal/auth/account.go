package auth

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Account — учётная запись садовода. Анонимные посетители аккаунта не
// имеют и идентифицируются browser-сессией (см. NewAnonymousSession).
type Account struct {
	ID           uint64    // Уникальный неизменяемый идентификатор
	Username     string    // Уникальное имя (case-insensitive)
	Email        string    // Для биллинговых уведомлений
	PasswordHash string    // bcrypt (60 символов)
	CreatedAt    time.Time
	LastLogin    time.Time

	// Supporter-статус выставляется вебхуками биллинга
	Supporter        bool
	SupporterSince   *time.Time
	StripeCustomerID string
}

// AccountRepository определяет операции хранения учётных записей.
// In-memory реализация используется в тестах, MongoDB/MariaDB — в бою.
type AccountRepository interface {
	// GetByUsername возвращает аккаунт по имени (case-insensitive)
	GetByUsername(username string) (*Account, error)

	// GetByID возвращает аккаунт по идентификатору
	GetByID(id uint64) (*Account, error)

	// GetByStripeCustomerID находит аккаунт по customer id биллинга
	GetByStripeCustomerID(customerID string) (*Account, error)

	// Create создаёт аккаунт. Пароль уже захеширован bcrypt.
	// При конфликте имени возвращается ErrAccountExists.
	Create(username, email, passwordHash string) (*Account, error)

	// ValidateCredentials проверяет пару имя/пароль
	ValidateCredentials(username, password string) (*Account, error)

	// SetSupporter включает или выключает supporter-статус.
	// customerID запоминается для обратного поиска из вебхуков.
	SetSupporter(id uint64, supporter bool, customerID string, since time.Time) error

	// UpdateLastLogin отмечает успешный вход
	UpdateLastLogin(id uint64) error
}

// Доменные ошибки репозитория.
var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// HashPassword возвращает bcrypt-хеш пароля с DefaultCost.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckPassword сравнивает bcrypt-хеш с паролем.
func CheckPassword(hash string, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
