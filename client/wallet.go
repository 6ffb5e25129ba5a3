package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Summary is the composite activity view for one wallet as returned by the
// server. TxCount is a lower bound when TxCountCapped is set.
type Summary struct {
	Address         string     `json:"address"`
	Balance         float64    `json:"balance"`
	BalanceLamports uint64     `json:"balance_lamports"`
	TxCount         int        `json:"tx_count"`
	TxCountCapped   bool       `json:"tx_count_capped"`
	LastActive      *time.Time `json:"last_active"`
}

// Transaction is one transaction history record.
type Transaction struct {
	Signature string     `json:"signature"`
	BlockTime *time.Time `json:"block_time"`
	Slot      uint64     `json:"slot"`
	Status    string     `json:"status"` // success, failed, unknown
	Fee       uint64     `json:"fee"`
}

// TransactionPage is a page of transaction history, newest first.
type TransactionPage struct {
	Address      string        `json:"address"`
	Transactions []Transaction `json:"transactions"`
	Count        int           `json:"count"`
}

// ServiceInfo describes the server and its API surface.
type ServiceInfo struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Endpoints map[string]string `json:"endpoints"`
}

// Client is the HTTP client for the walletscope service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a new wallet service client.
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Summary retrieves the activity summary for a wallet.
func (c *Client) Summary(ctx context.Context, address string) (*Summary, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/summary", c.baseURL, url.PathEscape(address))
	var summary Summary
	if err := c.getJSON(ctx, u, &summary); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched wallet summary", "address", address, "tx_count", summary.TxCount)
	return &summary, nil
}

// Transactions retrieves one page of transaction history for a wallet,
// newest first. A limit of 0 lets the server apply its default page size.
func (c *Client) Transactions(ctx context.Context, address string, limit int) (*TransactionPage, error) {
	u := fmt.Sprintf("%s/api/v1/wallets/%s/transactions", c.baseURL, url.PathEscape(address))
	if limit > 0 {
		u = fmt.Sprintf("%s?limit=%d", u, limit)
	}

	var page TransactionPage
	if err := c.getJSON(ctx, u, &page); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched transaction page", "address", address, "count", page.Count)
	return &page, nil
}

// Info retrieves the server's service description.
func (c *Client) Info(ctx context.Context) (*ServiceInfo, error) {
	var info ServiceInfo
	if err := c.getJSON(ctx, c.baseURL+"/", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Health checks the server health endpoint. A nil return means healthy.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// getJSON performs a GET request and decodes a JSON response body into out.
func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.parseErrorResponse(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse attempts to parse an error response from the server.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	var errResp struct {
		Error string `json:"error"`
	}

	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return fmt.Errorf("request failed: %s", errResp.Error)
}
