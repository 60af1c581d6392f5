package auth

import (
	"strings"
	"sync"
	"time"
)

// MemoryAccountRepo — потокобезопасное in-memory хранилище аккаунтов.
// Подходит для тестов и single-instance запуска без БД.
// Счётчик ID начинается с 1.
type MemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*Account // key = lowercase(username)
	nextID   uint64
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{
		accounts: make(map[string]*Account),
		nextID:   1,
	}
}

// Helper to normalise usernames.
func normalize(username string) string {
	return strings.ToLower(username)
}

func (r *MemoryAccountRepo) GetByUsername(username string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	acc, ok := r.accounts[normalize(username)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

func (r *MemoryAccountRepo) GetByID(id uint64) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if acc.ID == id {
			return acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryAccountRepo) GetByStripeCustomerID(customerID string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, acc := range r.accounts {
		if acc.StripeCustomerID != "" && acc.StripeCustomerID == customerID {
			return acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

func (r *MemoryAccountRepo) Create(username, email, passwordHash string) (*Account, error) {
	key := normalize(username)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.accounts[key]; exists {
		return nil, ErrAccountExists
	}

	acc := &Account{
		ID:           r.nextID,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		LastLogin:    time.Now(),
	}
	r.nextID++
	r.accounts[key] = acc
	return acc, nil
}

func (r *MemoryAccountRepo) ValidateCredentials(username, password string) (*Account, error) {
	acc, err := r.GetByUsername(username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(acc.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

func (r *MemoryAccountRepo) SetSupporter(id uint64, supporter bool, customerID string, since time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.ID == id {
			acc.Supporter = supporter
			if customerID != "" {
				acc.StripeCustomerID = customerID
			}
			if supporter {
				ts := since
				acc.SupporterSince = &ts
			} else {
				acc.SupporterSince = nil
			}
			return nil
		}
	}
	return ErrAccountNotFound
}

func (r *MemoryAccountRepo) UpdateLastLogin(id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, acc := range r.accounts {
		if acc.ID == id {
			acc.LastLogin = time.Now()
			return nil
		}
	}
	return ErrAccountNotFound
}
