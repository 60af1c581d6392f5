package auth

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MariaConfig содержит настройки подключения к MariaDB
type MariaConfig struct {
	Host     string // например, localhost
	Port     int    // например, 3306
	Database string // например, growdoro
	Username string // пользователь БД
	Password string // пароль БД
}

// MariaAccountRepo реализует AccountRepository для MariaDB
type MariaAccountRepo struct {
	db *sql.DB
}

// NewMariaAccountRepo создает новое подключение к MariaDB и возвращает репозиторий
func NewMariaAccountRepo(cfg MariaConfig) (*MariaAccountRepo, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 3306
	}
	if cfg.Database == "" {
		cfg.Database = "growdoro"
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть подключение к MariaDB: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось подключиться к MariaDB: %w", err)
	}

	repo := &MariaAccountRepo{db: db}

	if err := repo.createTables(); err != nil {
		return nil, fmt.Errorf("не удалось создать таблицы: %w", err)
	}

	return repo, nil
}

// createTables создает необходимые таблицы в БД
func (m *MariaAccountRepo) createTables() error {
	createAccountsTable := `
	CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		supporter BOOLEAN NOT NULL DEFAULT FALSE,
		supporter_since TIMESTAMP NULL DEFAULT NULL,
		stripe_customer_id VARCHAR(64) NULL DEFAULT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		last_login TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_username (username)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`

	if _, err := m.db.Exec(createAccountsTable); err != nil {
		return fmt.Errorf("не удалось создать таблицу accounts: %w", err)
	}
	return nil
}

func scanAccount(row *sql.Row) (*Account, error) {
	var acc Account
	var since sql.NullTime
	var customerID sql.NullString
	err := row.Scan(
		&acc.ID,
		&acc.Username,
		&acc.Email,
		&acc.PasswordHash,
		&acc.Supporter,
		&since,
		&customerID,
		&acc.CreatedAt,
		&acc.LastLogin,
	)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении аккаунта: %w", err)
	}
	if since.Valid {
		ts := since.Time
		acc.SupporterSince = &ts
	}
	if customerID.Valid {
		acc.StripeCustomerID = customerID.String
	}
	return &acc, nil
}

const accountColumns = `id, username, email, password_hash, supporter, supporter_since, stripe_customer_id, created_at, last_login`

// GetByUsername получает аккаунт по имени
func (m *MariaAccountRepo) GetByUsername(username string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE username = ?`
	return scanAccount(m.db.QueryRow(query, strings.ToLower(username)))
}

// GetByID получает аккаунт по идентификатору
func (m *MariaAccountRepo) GetByID(id uint64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`
	return scanAccount(m.db.QueryRow(query, id))
}

// GetByStripeCustomerID получает аккаунт по customer id биллинга
func (m *MariaAccountRepo) GetByStripeCustomerID(customerID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE stripe_customer_id = ?`
	return scanAccount(m.db.QueryRow(query, customerID))
}

// Create создает новый аккаунт
func (m *MariaAccountRepo) Create(username, email, passwordHash string) (*Account, error) {
	lower := strings.ToLower(username)
	now := time.Now()

	query := `INSERT INTO accounts (username, email, password_hash, created_at, last_login)
			  VALUES (?, ?, ?, ?, ?)`

	result, err := m.db.Exec(query, lower, email, passwordHash, now, now)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
			return nil, ErrAccountExists
		}
		return nil, fmt.Errorf("ошибка при создании аккаунта: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ошибка при получении ID аккаунта: %w", err)
	}

	return &Account{
		ID:           uint64(id),
		Username:     lower,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
	}, nil
}

// ValidateCredentials проверяет пару имя/пароль
func (m *MariaAccountRepo) ValidateCredentials(username, password string) (*Account, error) {
	acc, err := m.GetByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// SetSupporter включает или выключает supporter-статус.
// Вебхуки биллинга ретраятся, поэтому операция идемпотентна:
// повторное применение того же статуса — не ошибка.
func (m *MariaAccountRepo) SetSupporter(id uint64, supporter bool, customerID string, since time.Time) error {
	if _, err := m.GetByID(id); err != nil {
		return err
	}

	var query string
	var args []interface{}
	if supporter {
		query = `UPDATE accounts SET supporter = TRUE, supporter_since = ?, stripe_customer_id = COALESCE(NULLIF(?, ''), stripe_customer_id) WHERE id = ?`
		args = []interface{}{since, customerID, id}
	} else {
		query = `UPDATE accounts SET supporter = FALSE, supporter_since = NULL WHERE id = ?`
		args = []interface{}{id}
	}

	if _, err := m.db.Exec(query, args...); err != nil {
		return fmt.Errorf("ошибка при обновлении supporter-статуса: %w", err)
	}
	return nil
}

// UpdateLastLogin обновляет время последнего входа
func (m *MariaAccountRepo) UpdateLastLogin(id uint64) error {
	query := `UPDATE accounts SET last_login = CURRENT_TIMESTAMP WHERE id = ?`
	if _, err := m.db.Exec(query, id); err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа: %w", err)
	}
	return nil
}

// Close закрывает подключение к БД
func (m *MariaAccountRepo) Close() error {
	return m.db.Close()
}
