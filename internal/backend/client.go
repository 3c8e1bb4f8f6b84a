// Package backend is the REST client for the shop backend.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cloud-wave-best-zizon/billing-desk/internal/domain"
)

// DateLayout is the date format of the bills endpoints.
const DateLayout = "2006-01-02"

// APIError is a non-2xx response from the backend.
type APIError struct {
	Method         string
	Path           string
	Status         int
	Message        string
	AvailableStock *int
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.AvailableStock != nil {
		return fmt.Sprintf("%s %s: %d %s (available stock %d)", e.Method, e.Path, e.Status, msg, *e.AvailableStock)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

type errorBody struct {
	Message        string `json:"message"`
	Error          string `json:"error"`
	AvailableStock *int   `json:"availableStock"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a client for baseURL. tlsConfig may be nil.
func NewClient(baseURL string, timeout time.Duration, tlsConfig *tls.Config, logger *zap.Logger) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if tlsConfig != nil {
		transport.TLSClientConfig = tlsConfig
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var products []domain.Product
	if err := c.do(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) CreateProduct(ctx context.Context, in domain.ProductInput) (*domain.Product, error) {
	var product domain.Product
	if err := c.do(ctx, http.MethodPost, "/api/products", in, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) UpdateProduct(ctx context.Context, id int, in domain.ProductInput) (*domain.Product, error) {
	var product domain.Product
	path := "/api/products/" + strconv.Itoa(id)
	if err := c.do(ctx, http.MethodPut, path, in, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) AddStock(ctx context.Context, update domain.StockUpdate) error {
	return c.do(ctx, http.MethodPost, "/api/products/stock", update, nil)
}

func (c *Client) BulkAddStock(ctx context.Context, bulk domain.BulkStockUpdate) error {
	return c.do(ctx, http.MethodPost, "/api/products/stock/bulk", bulk, nil)
}

func (c *Client) ListBills(ctx context.Context, date time.Time) ([]domain.HistoricalBill, error) {
	var bills []domain.HistoricalBill
	path := "/api/bills?" + url.Values{"date": {date.Format(DateLayout)}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &bills); err != nil {
		return nil, err
	}
	return bills, nil
}

func (c *Client) BillSummary(ctx context.Context, date time.Time) (*domain.BillSummary, error) {
	var summary domain.BillSummary
	path := "/api/bills/summary?" + url.Values{"date": {date.Format(DateLayout)}}.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetBill(ctx context.Context, id string) (*domain.HistoricalBill, error) {
	var bill domain.HistoricalBill
	if err := c.do(ctx, http.MethodGet, "/api/bills/"+url.PathEscape(id), nil, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (c *Client) CreateBill(ctx context.Context, req domain.CreateBillRequest) (*domain.HistoricalBill, error) {
	var bill domain.HistoricalBill
	if err := c.do(ctx, http.MethodPost, "/api/bills", req, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (c *Client) UpdateBill(ctx context.Context, id string, req domain.CreateBillRequest) (*domain.HistoricalBill, error) {
	var bill domain.HistoricalBill
	if err := c.do(ctx, http.MethodPut, "/api/bills/"+url.PathEscape(id), req, &bill); err != nil {
		return nil, err
	}
	return &bill, nil
}

func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if err := c.do(ctx, http.MethodGet, "/api/contacts", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (c *Client) UpsertContact(ctx context.Context, contact domain.Contact) error {
	return c.do(ctx, http.MethodPost, "/api/contacts", contact, nil)
}

// KeepAlive pings the backend so the hosting platform does not idle it.
func (c *Client) KeepAlive(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/api/keep-alive", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
			apiErr.AvailableStock = eb.AvailableStock
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
