package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Client talks to the storefront backend over HTTPS/JSON. It carries no
// session state; operations that need authentication take an explicit
// bearer token.
type Client struct {
	baseURL string
	httpc   *http.Client
	cached  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpc = hc }
}

// WithCachingClient overrides the HTTP client used for public catalog
// reads. Defaults to an in-memory caching client.
func WithCachingClient(hc *http.Client) Option {
	return func(c *Client) { c.cached = hc }
}

// New creates a client for the backend at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cached == nil {
		c.cached = NewCachingHTTPClient("")
	}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

// errorBody covers the two rejection shapes the backend uses:
// {"success":false,"message":...} and {"error":...}.
type errorBody struct {
	Message string `json:"message"`
	Err     string `json:"error"`
	Detail  string `json:"detail"`
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, path, token string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	log.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("api call")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		msg := eb.Message
		if msg == "" {
			msg = eb.Err
		}
		if msg == "" {
			msg = eb.Detail
		}
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// Login exchanges credentials for a token pair. A credential rejection is
// returned as *Error, never as authenticated state.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var resp LoginResponse
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/auth/login/", "", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil || resp.AccessToken == "" {
		return nil, &Error{Status: http.StatusOK, Message: resp.Message}
	}
	return &resp, nil
}

// Register creates an account. The backend deliberately returns no tokens;
// the new account must log in explicitly.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	var resp RegisterResponse
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/auth/register/", "", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Refresh mints a new access token from a refresh token. Any non-2xx
// response means the refresh failed.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var resp refreshResponse
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/auth/refresh/", "", refreshRequest{Refresh: refreshToken}, &resp); err != nil {
		return nil, err
	}
	pair := &TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if pair.AccessToken == "" {
		pair.AccessToken = resp.Access
	}
	if pair.RefreshToken == "" {
		pair.RefreshToken = resp.Refresh
	}
	if pair.AccessToken == "" {
		return nil, &Error{Status: http.StatusOK, Message: "refresh response missing access token"}
	}
	return pair, nil
}

// Verify checks the access token against the backend and returns the
// current account record.
func (c *Client) Verify(ctx context.Context, token string) (*User, error) {
	var resp VerifyResponse
	if err := c.getJSON(ctx, c.httpc, "/api/auth/verify/", token, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &Error{Status: http.StatusOK, Message: "invalid session"}
	}
	return resp.User, nil
}

// Logout notifies the backend so the refresh token can be blacklisted.
// Callers treat failures as best-effort.
func (c *Client) Logout(ctx context.Context, token, refreshToken string) error {
	body := map[string]string{"refresh_token": refreshToken}
	return c.do(ctx, c.httpc, http.MethodPost, "/api/auth/logout/", token, body, nil)
}

// UpdateProfile applies a partial profile update and returns the updated
// account record.
func (c *Client) UpdateProfile(ctx context.Context, token string, updates map[string]any) (*User, error) {
	var resp ProfileResponse
	if err := c.do(ctx, c.httpc, http.MethodPut, "/api/auth/profile/", token, updates, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.User == nil {
		return nil, &Error{Status: http.StatusOK, Message: resp.Message}
	}
	return resp.User, nil
}

// GetCart fetches the authoritative cart. The token may be empty; the
// backend serves an empty session cart for anonymous callers.
func (c *Client) GetCart(ctx context.Context, token string) (*CartSummary, error) {
	var summary CartSummary
	if err := c.getJSON(ctx, c.httpc, "/api/cart/", token, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// AddToCart adds quantity of a product, merging with an existing line.
func (c *Client) AddToCart(ctx context.Context, token string, productID int64, quantity int) (*CartMutationResponse, error) {
	var resp CartMutationResponse
	req := addToCartRequest{ProductID: productID, Quantity: quantity}
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/cart/add/", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateCartItem replaces the quantity of a cart line.
func (c *Client) UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*CartMutationResponse, error) {
	var resp CartMutationResponse
	req := updateQuantityRequest{Quantity: quantity}
	path := fmt.Sprintf("/api/cart/items/%s/", itemID)
	if err := c.do(ctx, c.httpc, http.MethodPut, path, token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RemoveCartItem deletes a cart line.
func (c *Client) RemoveCartItem(ctx context.Context, token, itemID string) (*CartMutationResponse, error) {
	var resp CartMutationResponse
	path := fmt.Sprintf("/api/cart/items/%s/remove/", itemID)
	if err := c.do(ctx, c.httpc, http.MethodDelete, path, token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCart empties the cart server-side.
func (c *Client) ClearCart(ctx context.Context, token string) (*CartMutationResponse, error) {
	var resp CartMutationResponse
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/cart/clear/", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Checkout converts the cart into an order.
func (c *Client) Checkout(ctx context.Context, token string, req CheckoutRequest) (*CheckoutResponse, error) {
	var resp CheckoutResponse
	if err := c.do(ctx, c.httpc, http.MethodPost, "/api/cart/checkout/", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders returns a page of the caller's order history. The backend
// scopes the listing by role; customers see their own orders.
func (c *Client) ListOrders(ctx context.Context, token string, page int, status string) (*OrderPage, error) {
	path := "/api/orders/"
	params := make([]string, 0, 2)
	if page > 1 {
		params = append(params, fmt.Sprintf("page=%d", page))
	}
	if status != "" {
		params = append(params, "status="+url.QueryEscape(status))
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}
	var op OrderPage
	if err := c.getJSON(ctx, c.httpc, path, token, &op); err != nil {
		return nil, err
	}
	return &op, nil
}

// GetOrder returns a single order with its lines and shipping details.
func (c *Client) GetOrder(ctx context.Context, token, id string) (*Order, error) {
	var o Order
	path := fmt.Sprintf("/api/orders/%s/", id)
	if err := c.getJSON(ctx, c.httpc, path, token, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CustomerOrderStats returns the caller's purchase summary.
func (c *Client) CustomerOrderStats(ctx context.Context, token string) (*OrderStats, error) {
	var stats OrderStats
	if err := c.getJSON(ctx, c.httpc, "/api/orders/customer/stats/", token, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListProducts returns a page of the public catalog. Responses are served
// through the caching client so repeat listings honour Cache-Control.
func (c *Client) ListProducts(ctx context.Context, page int, search string) (*ProductPage, error) {
	path := "/api/all_products/"
	params := make([]string, 0, 2)
	if page > 1 {
		params = append(params, fmt.Sprintf("page=%d", page))
	}
	if search != "" {
		params = append(params, "search="+url.QueryEscape(search))
	}
	if len(params) > 0 {
		path += "?" + strings.Join(params, "&")
	}
	var pp ProductPage
	if err := c.getJSON(ctx, c.cached, path, "", &pp); err != nil {
		return nil, err
	}
	return &pp, nil
}

// GetProduct returns a single catalog entry by id.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var p Product
	path := fmt.Sprintf("/api/products/%d/", id)
	if err := c.getJSON(ctx, c.cached, path, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Categories lists all product categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var cats []Category
	if err := c.getJSON(ctx, c.cached, "/api/categories/list/", "", &cats); err != nil {
		return nil, err
	}
	return cats, nil
}
