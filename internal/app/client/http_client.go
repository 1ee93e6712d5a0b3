package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/exp/slog"

	"possync/internal/app/client/config"
	"possync/internal/domain/entity"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerOwnerID        = "X-Owner-ID"
)

type httpClient struct {
	client    *http.Client
	log       *slog.Logger
	baseURL   string
	ownerID   string
	userAgent string
}

// NewHTTPClient создает клиент удаленного API.
// Таймаут отдельного вызова задает контекст вызывающего.
func NewHTTPClient(cfg *config.Config, log *slog.Logger) *httpClient {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			MaxIdleConnsPerHost: 10,
		},
	}

	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}

	return &httpClient{
		client:    client,
		log:       log.With("component", "http_client"),
		baseURL:   scheme + cfg.ServerAddress,
		ownerID:   cfg.OwnerID,
		userAgent: "PosSync-Client/1.0",
	}
}

// HealthCheck проверяет доступность сервера
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("сервер недоступен: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("сервер вернул статус: %d", resp.StatusCode)
	}
	return nil
}

func (h *httpClient) List(ctx context.Context, kind entity.Kind, filter entity.Filter) ([]entity.Record, error) {
	path := entitiesPath(kind)
	if filter.StoreID != "" {
		path += "?store_id=" + url.QueryEscape(filter.StoreID)
	}

	var out entity.ListResponse
	if err := h.do(ctx, http.MethodGet, path, filter.OwnerID, "", nil, &out); err != nil {
		return nil, err
	}

	records := make([]entity.Record, 0, len(out.Records))
	for _, w := range out.Records {
		rec, err := w.ToRecord()
		if err != nil {
			return nil, &entity.RemoteCallError{Message: "ошибка разбора записи", Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (h *httpClient) Get(ctx context.Context, kind entity.Kind, id string) (*entity.Record, error) {
	return h.single(ctx, http.MethodGet, entityPath(kind, id), "", nil)
}

func (h *httpClient) Create(ctx context.Context, kind entity.Kind, fields json.RawMessage, idempotencyKey string) (*entity.Record, error) {
	return h.single(ctx, http.MethodPost, entitiesPath(kind), idempotencyKey, fields)
}

func (h *httpClient) Update(ctx context.Context, kind entity.Kind, id string, fields json.RawMessage) (*entity.Record, error) {
	return h.single(ctx, http.MethodPut, entityPath(kind, id), "", fields)
}

func (h *httpClient) Delete(ctx context.Context, kind entity.Kind, id string) error {
	return h.do(ctx, http.MethodDelete, entityPath(kind, id), "", "", nil, nil)
}

func (h *httpClient) single(ctx context.Context, method, path, idempotencyKey string, body json.RawMessage) (*entity.Record, error) {
	var out entity.WireRecord
	if err := h.do(ctx, method, path, "", idempotencyKey, body, &out); err != nil {
		return nil, err
	}
	rec, err := out.ToRecord()
	if err != nil {
		return nil, &entity.RemoteCallError{Message: "ошибка разбора записи", Err: err}
	}
	return &rec, nil
}

func (h *httpClient) do(ctx context.Context, method, path, ownerID, idempotencyKey string, body json.RawMessage, result any) error {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return &entity.RemoteCallError{Message: "ошибка создания запроса", Err: err}
	}

	if ownerID == "" {
		ownerID = h.ownerID
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set(headerOwnerID, ownerID)
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotencyKey, idempotencyKey)
	}

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return &entity.RemoteCallError{
			Message:   "ошибка выполнения запроса",
			Transient: true,
			Err:       err,
		}
	}

	return h.parseResponse(resp, result)
}

func (h *httpClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &entity.RemoteCallError{Message: "ошибка чтения ответа", Transient: true, Err: err}
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"bytes", len(body),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return entity.NewStatusError(resp.StatusCode, errorMessage(body, resp.StatusCode))
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return &entity.RemoteCallError{Message: "ошибка парсинга ответа", Err: err}
		}
	}
	return nil
}

// errorMessage достает текст ошибки из ответа huma или простого {"error"}.
func errorMessage(body []byte, status int) string {
	var errResp struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		switch {
		case errResp.Detail != "":
			return errResp.Detail
		case errResp.Error != "":
			return errResp.Error
		case errResp.Title != "":
			return errResp.Title
		}
	}
	return http.StatusText(status)
}

func entitiesPath(kind entity.Kind) string {
	return "/api/v1/entities/" + url.PathEscape(string(kind))
}

func entityPath(kind entity.Kind, id string) string {
	return entitiesPath(kind) + "/" + url.PathEscape(id)
}
