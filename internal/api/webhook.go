package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/annel0/growdoro/internal/auth"
	"github.com/annel0/growdoro/internal/logging"
)

// BillingEvent — входящее событие платёжного провайдера (Stripe-формат).
type BillingEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object billingObject `json:"object"`
	} `json:"data"`
	Created int64 `json:"created"`
}

type billingObject struct {
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// HandleBillingWebhook принимает webhook'и биллинга. Подпись
// HMAC-SHA256 проверяется по сырому телу ДО разбора JSON; при
// неверной подписи ничего не обрабатывается.
func (rs *RestServer) HandleBillingWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Не удалось прочитать тело запроса"})
		return
	}

	if rs.billing.RequireSignature || rs.billing.WebhookSecret != "" {
		// Подпись обязательна, но секрет не задан — проверить нечем.
		// Отвергаем всё: конфигурационная ошибка не открывает биллинг.
		if rs.billing.WebhookSecret == "" {
			logging.Error("🔒 Webhook отклонён: подпись обязательна, но секрет не настроен")
			c.JSON(http.StatusInternalServerError, GenericResponse{Success: false, Message: "Проверка подписи не настроена"})
			return
		}
		signature := c.GetHeader("X-Webhook-Signature")
		if !verifySignature(body, signature, rs.billing.WebhookSecret) {
			logging.Warn("🔒 Webhook с неверной подписью от %s", c.ClientIP())
			c.JSON(http.StatusUnauthorized, GenericResponse{Success: false, Message: "Неверная подпись"})
			return
		}
	}

	var event BillingEvent
	if err := json.Unmarshal(body, &event); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный JSON"})
		return
	}

	status, message := rs.processBillingEvent(event)
	logging.Info("💳 Webhook %s (%s): %s", event.Type, event.ID, message)

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Webhook обработан",
		Data: map[string]interface{}{
			"event_id":     event.ID,
			"status":       status,
			"processed_at": time.Now().Unix(),
		},
	})
}

// processBillingEvent применяет событие к supporter-статусу аккаунта.
// Неизвестные типы событий — не ошибка: провайдер шлёт больше, чем
// нам нужно.
func (rs *RestServer) processBillingEvent(event BillingEvent) (status, message string) {
	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated":
		active := event.Data.Object.Status == "active" || event.Data.Object.Status == "trialing"
		return rs.applySupporter(event, active)
	case "customer.subscription.deleted", "invoice.payment_failed":
		return rs.applySupporter(event, false)
	case "invoice.paid", "invoice.payment_succeeded":
		return rs.applySupporter(event, true)
	default:
		return "ignored", "неизвестный тип события"
	}
}

// applySupporter находит аккаунт (по customer id или metadata) и
// выставляет supporter-статус. Операция идемпотентна: провайдер
// доставляет события с повторами.
func (rs *RestServer) applySupporter(event BillingEvent, supporter bool) (status, message string) {
	obj := event.Data.Object

	acc, err := rs.accounts.GetByStripeCustomerID(obj.Customer)
	if err == auth.ErrAccountNotFound {
		// Первое событие подписки: аккаунт ещё не связан с customer
		if idStr, ok := obj.Metadata["account_id"]; ok {
			if id, parseErr := strconv.ParseUint(idStr, 10, 64); parseErr == nil {
				acc, err = rs.accounts.GetByID(id)
			}
		}
	}
	if err != nil || acc == nil {
		return "unmatched", "аккаунт для customer не найден"
	}

	since := time.Unix(event.Created, 0)
	if event.Created == 0 {
		since = time.Now()
	}
	if err := rs.accounts.SetSupporter(acc.ID, supporter, obj.Customer, since); err != nil {
		return "error", "не удалось обновить статус: " + err.Error()
	}

	rs.outboundWebhooks.SendEvent("supporter.changed", map[string]interface{}{
		"account_id": acc.ID,
		"supporter":  supporter,
	})
	return "applied", "supporter=" + strconv.FormatBool(supporter)
}

// verifySignature сравнивает HMAC-SHA256 подпись тела в constant time.
// Формат заголовка: sha256=<hex>. Пустой секрет не проходит никогда.
func verifySignature(body []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}
