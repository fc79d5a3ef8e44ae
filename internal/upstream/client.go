package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrTransport - исходящий вызов не дал пригодного HTTP ответа
// (DNS, соединение, дедлайн, битое тело). Наружу отдается как 500.
var ErrTransport = errors.New("upstream transport failure")

// maxResponseBytes ограничивает размер читаемого ответа вендора
const maxResponseBytes = 32 << 20

// Response - статус и тело ответа вендора без изменений
type Response struct {
	StatusCode int
	Body       []byte
}

// OK сообщает, что вендор ответил 2xx
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Client выполняет ровно один исходящий запрос на вызов Forward, без ретраев
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// NewTransport возвращает транспорт с пулом соединений.
// Таймауты здесь только на установку соединения; дедлайн запроса задается в Forward.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// NewClient создает клиент. httpClient == nil означает клиент с NewTransport.
// timeout == 0 отключает дедлайн.
func NewClient(httpClient *http.Client, timeout time.Duration, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: NewTransport()}
	}
	return &Client{
		httpClient: httpClient,
		timeout:    timeout,
		logger:     logger.Named("upstream"),
	}
}

// Forward отправляет body вендору как есть, с серверным ключом.
// Не-2xx ответ вендора - это валидный *Response, а не ошибка.
func (c *Client) Forward(ctx context.Context, v Vendor, apiKey string, body []byte) (*Response, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", v.Name, err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	v.Authorize(req.Header, apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransport, v.Name, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", ErrTransport, v.Name, err)
	}
	if len(payload) > maxResponseBytes {
		return nil, fmt.Errorf("%w: %s response exceeds %d bytes", ErrTransport, v.Name, maxResponseBytes)
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("%w: %s returned non-JSON body (status %d)", ErrTransport, v.Name, resp.StatusCode)
	}

	c.logger.Debug("upstream responded",
		zap.String("vendor", v.Name),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("latency", time.Since(start)))

	return &Response{StatusCode: resp.StatusCode, Body: payload}, nil
}
