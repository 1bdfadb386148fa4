package monnify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Config holds Monnify gateway configuration
type Config struct {
	APIKey       string // Merchant API key (basic auth user)
	SecretKey    string // Secret key: basic auth password, also signs webhooks
	ContractCode string // Merchant contract code for reserved accounts
	BaseURL      string // e.g. https://sandbox.monnify.com
	Timeout      time.Duration
}

// Client talks to the Monnify REST API. Webhook verification does not need
// the client; it only needs the secret key (see VerifySignature).
type Client struct {
	config     Config
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

// ReservedAccountRequest creates a dedicated virtual account for a customer.
type ReservedAccountRequest struct {
	AccountReference string `json:"accountReference"`
	AccountName      string `json:"accountName"`
	CurrencyCode     string `json:"currencyCode"`
	ContractCode     string `json:"contractCode"`
	CustomerEmail    string `json:"customerEmail"`
	CustomerName     string `json:"customerName"`
	BVN              string `json:"bvn,omitempty"`
	NIN              string `json:"nin,omitempty"`
	GetAllBanks      bool   `json:"getAllAvailableBanks"`
}

// BankAccount is one virtual account number under a reserved account.
type BankAccount struct {
	BankCode      string `json:"bankCode"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	AccountName   string `json:"accountName"`
}

// ReservedAccountResponse is the created reserved account.
type ReservedAccountResponse struct {
	AccountReference string        `json:"accountReference"`
	AccountName      string        `json:"accountName"`
	Accounts         []BankAccount `json:"accounts"`
}

type apiEnvelope struct {
	RequestSuccessful bool            `json:"requestSuccessful"`
	ResponseMessage   string          `json:"responseMessage"`
	ResponseBody      json.RawMessage `json:"responseBody"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// NewClient creates a Monnify API client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateReservedAccount provisions virtual account numbers for a customer.
// Account names are truncated to Monnify's 50-character limit.
func (c *Client) CreateReservedAccount(ctx context.Context, req ReservedAccountRequest) (*ReservedAccountResponse, error) {
	if strings.TrimSpace(req.AccountReference) == "" {
		return nil, fmt.Errorf("validation error: account reference is empty")
	}
	if req.ContractCode == "" {
		req.ContractCode = c.config.ContractCode
	}
	if req.CurrencyCode == "" {
		req.CurrencyCode = "NGN"
	}
	req.AccountName = truncate(req.AccountName, 50)
	req.CustomerName = truncate(req.CustomerName, 50)

	body, err := c.do(ctx, http.MethodPost, "/api/v2/bank-transfer/reserved-accounts", req)
	if err != nil {
		return nil, err
	}

	var out ReservedAccountResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("monnify: malformed reserved account response: %w", err)
	}
	return &out, nil
}

// do performs an authenticated API call and returns the responseBody.
func (c *Client) do(ctx context.Context, method, path string, payload any) (json.RawMessage, error) {
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("monnify: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("monnify: malformed response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !env.RequestSuccessful {
		return nil, fmt.Errorf("monnify: %s %s failed (status %d): %s", method, path, resp.StatusCode, env.ResponseMessage)
	}
	return env.ResponseBody, nil
}

// token returns a cached access token, re-authenticating when expired.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/api/v1/auth/login", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.config.APIKey, c.config.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("monnify: auth request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", fmt.Errorf("monnify: malformed auth response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !env.RequestSuccessful {
		return "", fmt.Errorf("monnify: auth failed (status %d): %s", resp.StatusCode, env.ResponseMessage)
	}

	var login loginResponse
	if err := json.Unmarshal(env.ResponseBody, &login); err != nil {
		return "", fmt.Errorf("monnify: malformed auth body: %w", err)
	}
	if login.AccessToken == "" {
		return "", fmt.Errorf("monnify: auth returned empty token")
	}

	c.accessToken = login.AccessToken
	// Refresh one minute before the advertised expiry.
	c.tokenExpiry = time.Now().Add(time.Duration(login.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}
