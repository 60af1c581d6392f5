package auth

import (
	"strings"
	"testing"
	"time"
)

// TestGenerateAccountToken тестирует создание JWT токена аккаунта
func TestGenerateAccountToken(t *testing.T) {
	acc := &Account{
		ID:        42,
		Username:  "gardener",
		Supporter: true,
		CreatedAt: time.Now(),
		LastLogin: time.Now(),
	}

	token, err := GenerateAccountToken(acc)
	if err != nil {
		t.Fatalf("Ошибка генерации JWT: %v", err)
	}
	if token == "" {
		t.Fatal("Пустой токен")
	}
	// Проверяем, что токен содержит точки (разделители частей JWT)
	if strings.Count(token, ".") != 2 {
		t.Errorf("Неверный формат JWT токена: %s", token)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("Валидный токен определен как недействительный: %v", err)
	}
	if claims.AccountID != acc.ID {
		t.Errorf("Неверный AccountID: ожидался %d, получен %d", acc.ID, claims.AccountID)
	}
	if !claims.Supporter {
		t.Error("Supporter-флаг потерян в claims")
	}
	owner := claims.Owner()
	if !owner.IsAccount() || owner.AccountID != 42 {
		t.Errorf("Owner() вернул %+v", owner)
	}
}

// TestAnonymousSession тестирует выпуск анонимной browser-сессии
func TestAnonymousSession(t *testing.T) {
	sessionID, token, err := NewAnonymousSession()
	if err != nil {
		t.Fatalf("Ошибка создания анонимной сессии: %v", err)
	}
	if sessionID == "" {
		t.Fatal("Пустой идентификатор сессии")
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("Анонимный токен недействителен: %v", err)
	}
	if claims.SessionID != sessionID {
		t.Errorf("SessionID в claims %q != выданному %q", claims.SessionID, sessionID)
	}
	if claims.AccountID != 0 {
		t.Error("Анонимный токен не должен нести AccountID")
	}
	owner := claims.Owner()
	if !owner.IsAnonymous() {
		t.Errorf("Владелец анонимного токена должен быть сессией: %+v", owner)
	}
}

// TestValidateTokenRejectsGarbage тестирует отклонение мусорных токенов
func TestValidateTokenRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "abc", "a.b.c", "eyJhbGciOiJIUzI1NiJ9.e30."} {
		if _, err := ValidateToken(bad); err == nil {
			t.Errorf("Токен %q прошел валидацию", bad)
		}
	}
}

// TestPasswordHashing тестирует bcrypt-хеширование
func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "secret123") {
		t.Error("Правильный пароль не прошел проверку")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("Неправильный пароль прошел проверку")
	}
}

// TestMemoryAccountRepo тестирует in-memory репозиторий аккаунтов
func TestMemoryAccountRepo(t *testing.T) {
	repo := NewMemoryAccountRepo()

	hash, _ := HashPassword("pass")
	acc, err := repo.Create("Gardener", "g@example.com", hash)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	t.Run("ИмяНечувствительноКРегистру", func(t *testing.T) {
		got, err := repo.GetByUsername("gardener")
		if err != nil {
			t.Fatalf("GetByUsername: %v", err)
		}
		if got.ID != acc.ID {
			t.Errorf("ID = %d, ожидался %d", got.ID, acc.ID)
		}
		if _, err := repo.Create("GARDENER", "", hash); err != ErrAccountExists {
			t.Errorf("Дубликат имени: ожидался ErrAccountExists, получено %v", err)
		}
	})

	t.Run("ValidateCredentials", func(t *testing.T) {
		if _, err := repo.ValidateCredentials("gardener", "pass"); err != nil {
			t.Errorf("Правильные учетные данные отклонены: %v", err)
		}
		if _, err := repo.ValidateCredentials("gardener", "nope"); err != ErrInvalidCredentials {
			t.Errorf("Ожидался ErrInvalidCredentials, получено %v", err)
		}
	})

	t.Run("SupporterСтатус", func(t *testing.T) {
		since := time.Now()
		if err := repo.SetSupporter(acc.ID, true, "cus_123", since); err != nil {
			t.Fatalf("SetSupporter: %v", err)
		}
		got, err := repo.GetByStripeCustomerID("cus_123")
		if err != nil {
			t.Fatalf("GetByStripeCustomerID: %v", err)
		}
		if !got.Supporter || got.SupporterSince == nil {
			t.Error("Supporter-статус не применился")
		}

		// Отмена подписки снимает статус, но customer id остается
		if err := repo.SetSupporter(acc.ID, false, "", time.Time{}); err != nil {
			t.Fatalf("SetSupporter(false): %v", err)
		}
		got, _ = repo.GetByID(acc.ID)
		if got.Supporter || got.SupporterSince != nil {
			t.Error("Supporter-статус не снялся")
		}
		if got.StripeCustomerID != "cus_123" {
			t.Error("Customer ID не должен стираться при отмене")
		}
	})
}
