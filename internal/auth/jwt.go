package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/annel0/growdoro/internal/garden"
)

// Секрет подписи JWT. В бою задаётся через SetJWTSecret из конфига.
var jwtSecret []byte

func init() {
	// Случайный секрет на время жизни процесса
	jwtSecret = make([]byte, 32)
	if _, err := rand.Read(jwtSecret); err != nil {
		// Fallback только для разработки
		jwtSecret = []byte("development-secret-key-change-in-production")
	}
}

// Claims — полезная нагрузка токена. Заполнено ровно одно из полей
// AccountID / SessionID: токен принадлежит либо аккаунту, либо
// анонимной browser-сессии.
type Claims struct {
	AccountID uint64 `json:"account_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Username  string `json:"username,omitempty"`
	Supporter bool   `json:"supporter,omitempty"`
	jwt.RegisteredClaims
}

// Owner возвращает владельца сада, закодированного в токене.
func (c *Claims) Owner() garden.Owner {
	if c.AccountID != 0 {
		return garden.AccountOwner(c.AccountID)
	}
	return garden.SessionOwner(c.SessionID)
}

func signedToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// GenerateAccountToken выпускает токен для аккаунта (24 часа).
func GenerateAccountToken(acc *Account) (string, error) {
	now := time.Now()
	claims := &Claims{
		AccountID: acc.ID,
		Username:  acc.Username,
		Supporter: acc.Supporter,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "growdoro",
			Subject:   acc.Username,
		},
	}
	return signedToken(claims)
}

// NewAnonymousSession выпускает идентификатор browser-сессии и токен
// для него. Анонимные токены живут дольше аккаунтных: сад анонима
// существует только пока жив его токен.
func NewAnonymousSession() (sessionID, token string, err error) {
	sessionID = uuid.New().String()
	now := time.Now()
	claims := &Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(365 * 24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "growdoro",
			Subject:   sessionID,
		},
	}
	token, err = signedToken(claims)
	return sessionID, token, err
}

// ValidateToken проверяет подпись и срок токена и возвращает claims.
func ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.AccountID == 0 && claims.SessionID == "" {
		return nil, errors.New("token carries no owner")
	}
	return claims, nil
}

// GenerateSecureSecret генерирует новый секрет подписи.
func GenerateSecureSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return base64.StdEncoding.EncodeToString(b)
}

// SetJWTSecret устанавливает секрет подписи (base64, минимум 32 байта).
func SetJWTSecret(secret string) error {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return err
	}
	if len(decoded) < 32 {
		return errors.New("secret key must be at least 32 bytes")
	}
	jwtSecret = decoded
	return nil
}
