package garden

import (
	"fmt"
	"strconv"
	"strings"
)

// Owner идентифицирует владельца блоков и сессий: либо аккаунт,
// либо анонимная браузерная сессия. Ровно одно поле заполнено.
type Owner struct {
	AccountID uint64 // 0, если владелец анонимный
	SessionID string // пусто, если владелец — аккаунт
}

// AccountOwner создаёт владельца-аккаунт.
func AccountOwner(accountID uint64) Owner {
	return Owner{AccountID: accountID}
}

// SessionOwner создаёт анонимного владельца.
func SessionOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

// IsAccount сообщает, что владелец — аутентифицированный аккаунт.
func (o Owner) IsAccount() bool {
	return o.AccountID != 0
}

// IsAnonymous сообщает, что владелец — анонимная сессия.
func (o Owner) IsAnonymous() bool {
	return o.AccountID == 0 && o.SessionID != ""
}

// Valid проверяет инвариант: заполнено ровно одно поле.
func (o Owner) Valid() bool {
	return (o.AccountID != 0) != (o.SessionID != "")
}

// Key возвращает строковый ключ владельца для карт и кешей.
func (o Owner) Key() string {
	if o.IsAccount() {
		return fmt.Sprintf("acct:%d", o.AccountID)
	}
	return fmt.Sprintf("sess:%s", o.SessionID)
}

// ParseOwnerKey разбирает ключ формата Key() обратно во владельца.
func ParseOwnerKey(key string) (Owner, error) {
	switch {
	case strings.HasPrefix(key, "acct:"):
		id, err := strconv.ParseUint(key[len("acct:"):], 10, 64)
		if err != nil || id == 0 {
			return Owner{}, fmt.Errorf("некорректный ключ владельца %q", key)
		}
		return Owner{AccountID: id}, nil
	case strings.HasPrefix(key, "sess:"):
		sessionID := key[len("sess:"):]
		if sessionID == "" {
			return Owner{}, fmt.Errorf("некорректный ключ владельца %q", key)
		}
		return Owner{SessionID: sessionID}, nil
	}
	return Owner{}, fmt.Errorf("некорректный ключ владельца %q", key)
}
