package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/annel0/growdoro/internal/garden"
	"github.com/annel0/growdoro/internal/vec"
)

// Ошибки API, различимые для политики повторов.
var (
	ErrConflict     = fmt.Errorf("координата занята или состояние конфликтует")
	ErrNotFound     = fmt.Errorf("объект не найден")
	ErrUnauthorized = fmt.Errorf("токен не принят")
)

// Client — HTTP-клиент REST API сада. Токен (аккаунтный или анонимный)
// подставляется во все запросы после SetToken.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient создает клиента API по базовому URL сервера.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken выставляет bearer-токен для последующих запросов.
func (c *Client) SetToken(token string) { c.token = token }

// Token возвращает текущий токен (для сохранения между запусками).
func (c *Client) Token() string { return c.token }

// apiResponse — общий конверт ответов сервера.
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// blockJSON зеркалит представление блока в API.
type blockJSON struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Pos       *vec.Vec3  `json:"pos,omitempty"`
	PlantedAt *time.Time `json:"planted_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (b blockJSON) toBlock() *garden.Block {
	return &garden.Block{
		ID:        b.ID,
		Type:      b.Type,
		Pos:       b.Pos,
		PlantedAt: b.PlantedAt,
		CreatedAt: b.CreatedAt,
	}
}

// do выполняет запрос и разбирает конверт; не-2xx мапится на ошибки.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("сериализация запроса: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("запрос %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("разбор ответа %s %s: %w", method, path, err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return envelope.Data, nil
	case resp.StatusCode == http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrConflict, envelope.Message)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, envelope.Message)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, envelope.Message)
	default:
		return nil, fmt.Errorf("сервер вернул %d: %s", resp.StatusCode, envelope.Message)
	}
}

// Anonymous создаёт анонимную сессию и запоминает её токен.
func (c *Client) Anonymous(ctx context.Context) (sessionID string, err error) {
	data, err := c.do(ctx, http.MethodPost, "/api/auth/anonymous", nil)
	if err != nil {
		return "", err
	}
	var out struct {
		SessionID string `json:"session_id"`
		Token     string `json:"token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("разбор анонимной сессии: %w", err)
	}
	c.token = out.Token
	return out.SessionID, nil
}

// ListBlocks возвращает размещённые блоки и инвентарь владельца.
func (c *Client) ListBlocks(ctx context.Context) ([]*garden.Block, map[string]int, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/blocks", nil)
	if err != nil {
		return nil, nil, err
	}
	var out struct {
		Placed    []blockJSON    `json:"placed"`
		Inventory map[string]int `json:"inventory"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, nil, fmt.Errorf("разбор списка блоков: %w", err)
	}

	placed := make([]*garden.Block, 0, len(out.Placed))
	for _, b := range out.Placed {
		placed = append(placed, b.toBlock())
	}
	return placed, out.Inventory, nil
}

// SeedGarden просит сервер засеять стартовый участок 2x2.
func (c *Client) SeedGarden(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/api/blocks/seed", nil)
	return err
}

// PlaceBlock размещает блок типа typeKey из инвентаря на pos.
func (c *Client) PlaceBlock(ctx context.Context, typeKey string, pos vec.Vec3) (*garden.Block, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/blocks/place", map[string]interface{}{
		"type": typeKey, "x": pos.X, "y": pos.Y, "z": pos.Z,
	})
	if err != nil {
		return nil, err
	}
	var b blockJSON
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("разбор размещённого блока: %w", err)
	}
	return b.toBlock(), nil
}

// MoveBlock переносит размещённый блок на новую позицию.
func (c *Client) MoveBlock(ctx context.Context, id string, pos vec.Vec3) error {
	_, err := c.do(ctx, http.MethodPost, "/api/blocks/move", map[string]interface{}{
		"id": id, "x": pos.X, "y": pos.Y, "z": pos.Z,
	})
	return err
}

// ClaimPack забирает пак наград за завершённую фокус-сессию.
func (c *Client) ClaimPack(ctx context.Context, sessionID string, durationSec int) ([]*garden.Block, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/packs/claim", map[string]interface{}{
		"session_id":       sessionID,
		"session_duration": durationSec,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Blocks []blockJSON `json:"blocks"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("разбор пака: %w", err)
	}

	granted := make([]*garden.Block, 0, len(out.Blocks))
	for _, b := range out.Blocks {
		granted = append(granted, b.toBlock())
	}
	return granted, nil
}
