// Package remote talks to the authoritative cart service over HTTP/JSON.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront-cart/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// HeaderCustomerID identifies the cart owner.
	HeaderCustomerID = "X-Customer-ID"
	// HeaderRequestID correlates client and server logs.
	HeaderRequestID = "X-Request-ID"
	// HeaderIdempotencyKey lets the service recognise a retried add.
	HeaderIdempotencyKey = "Idempotency-Key"

	maxErrorBody = 4 << 10
)

// Config holds the client settings.
type Config struct {
	BaseURL    string
	CustomerID string
	Timeout    time.Duration
}

// Client is the remote cart service client used by the sync engine.
type Client struct {
	baseURL    string
	customerID string
	httpClient *http.Client
	logger     *zap.Logger
}

// New validates cfg and builds a client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote base url required")
	}
	if strings.TrimSpace(cfg.CustomerID) == "" {
		return nil, errors.New("customer id required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    base,
		customerID: cfg.CustomerID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}, nil
}

type addItemRequest struct {
	ProductVariantID int64 `json:"productVariantId"`
	Quantity         int   `json:"quantity"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	ID    int64             `json:"id"`
	Items []domain.CartItem `json:"items"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// FetchCart returns the authoritative lines of the shopper's cart.
func (c *Client) FetchCart(ctx context.Context) ([]domain.CartItem, error) {
	var resp cartResponse
	if err := c.do(ctx, http.MethodGet, "/cart/me", nil, &resp); err != nil {
		return nil, err
	}
	items := make([]domain.CartItem, 0, len(resp.Items))
	for idx, raw := range resp.Items {
		if raw.CartID == 0 {
			raw.CartID = resp.ID
		}
		item, err := domain.NormalizeServerItem(raw)
		if err != nil {
			return nil, fmt.Errorf("cart line %d: %w", idx, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// AddItem creates or increments the line for variantID and returns it.
func (c *Client) AddItem(ctx context.Context, variantID int64, quantity int) (domain.CartItem, error) {
	var raw domain.CartItem
	body := addItemRequest{ProductVariantID: variantID, Quantity: quantity}
	if err := c.do(ctx, http.MethodPost, "/cart/items", body, &raw); err != nil {
		return domain.CartItem{}, err
	}
	item, err := domain.NormalizeServerItem(raw)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("add item response: %w", err)
	}
	return item, nil
}

// UpdateItem sets the quantity of line id.
func (c *Client) UpdateItem(ctx context.Context, id int64, quantity int) (domain.CartItem, error) {
	var raw domain.CartItem
	path := "/cart/items/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodPatch, path, updateItemRequest{Quantity: quantity}, &raw); err != nil {
		return domain.CartItem{}, err
	}
	item, err := domain.NormalizeServerItem(raw)
	if err != nil {
		return domain.CartItem{}, fmt.Errorf("update item response: %w", err)
	}
	return item, nil
}

// RemoveItem deletes line id.
func (c *Client) RemoveItem(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+strconv.FormatInt(id, 10), nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(HeaderCustomerID, c.customerID)
	req.Header.Set(HeaderRequestID, requestID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set(HeaderIdempotencyKey, uuid.NewString())
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("cart service request failed",
			zap.String("method", method), zap.String("path", path), zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("cart service request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(raw))
	var parsed errorResponse
	if json.Unmarshal(raw, &parsed) == nil && parsed.Error != "" {
		msg = parsed.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: msg}
}
