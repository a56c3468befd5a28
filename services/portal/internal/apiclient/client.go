package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"faydo/services/portal/internal/account"
)

const defaultTimeout = 15 * time.Second

// Client talks to the remote Faydo API. It is stateless with respect to
// identity: tokens are passed per call, never stored here.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *log.Logger
}

// New creates a Client for the given base URL (e.g. https://api.faydo.ir/api).
// Plain HTTP is refused unless FAYDO_ALLOW_INSECURE_HTTP is set.
func New(baseURL string, httpClient *http.Client, logger *log.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("api base url is required")
	}
	if err := ensureHTTPS(baseURL, allowInsecureHTTP()); err != nil {
		return nil, err
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	return &Client{baseURL: baseURL, http: httpClient, logger: logger}, nil
}

// Login exchanges credentials for a user and token pair.
func (c *Client) Login(ctx context.Context, username, password string) (*account.User, Tokens, error) {
	payload := map[string]string{"username": username, "password": password}

	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/accounts/auth/login/", "", payload, &resp)
	if err != nil {
		return nil, Tokens{}, loginError("login", err)
	}

	user, err := mapAuthUser(resp)
	if err != nil {
		return nil, Tokens{}, err
	}
	return user, resp.Tokens, nil
}

// RegisterCustomer creates a customer account and returns the authenticated
// user and tokens.
func (c *Client) RegisterCustomer(ctx context.Context, reg CustomerRegistration) (*account.User, Tokens, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/accounts/auth/register/", "", reg, &resp)
	if err != nil {
		return nil, Tokens{}, loginError("register customer", err)
	}

	user, err := mapAuthUser(resp)
	if err != nil {
		return nil, Tokens{}, err
	}
	return user, resp.Tokens, nil
}

// RegisterBusiness creates a business account and returns the authenticated
// user and tokens.
func (c *Client) RegisterBusiness(ctx context.Context, reg BusinessRegistration) (*account.User, Tokens, error) {
	var resp authResponse
	err := c.do(ctx, http.MethodPost, "/accounts/auth/register/business/", "", reg, &resp)
	if err != nil {
		return nil, Tokens{}, loginError("register business", err)
	}

	user, err := mapAuthUser(resp)
	if err != nil {
		return nil, Tokens{}, err
	}
	return user, resp.Tokens, nil
}

// Profile performs the "who am I" lookup for the given access token and maps
// the result into the local user model.
func (c *Client) Profile(ctx context.Context, accessToken string) (*account.User, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrUnauthorized
	}

	var resp profileResponse
	err := c.do(ctx, http.MethodGet, "/accounts/auth/profile/", accessToken, nil, &resp)
	if err != nil {
		var apiErr *APIError
		switch {
		case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrMalformedResponse), IsNetwork(err):
			return nil, err
		case errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden:
			return nil, ErrUnauthorized
		default:
			return nil, err
		}
	}

	user, err := account.MapUser(resp.User, resp.Profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return user, nil
}

// Refresh exchanges the refresh token for a new access token. A 4xx answer
// means the refresh token is burned and the session must be torn down.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", ErrRefreshRejected
	}

	payload := map[string]string{"refresh": refreshToken}

	var resp refreshResponse
	err := c.do(ctx, http.MethodPost, "/accounts/auth/refresh/", "", payload, &resp)
	if err != nil {
		if IsNetwork(err) {
			return "", err
		}
		var apiErr *APIError
		if errors.Is(err, ErrUnauthorized) || (errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError) {
			return "", ErrRefreshRejected
		}
		return "", err
	}

	if strings.TrimSpace(resp.Access) == "" {
		return "", fmt.Errorf("%w: refresh response missing access token", ErrMalformedResponse)
	}
	return resp.Access, nil
}

// Logout asks the server to blacklist the refresh token. Best effort: the
// caller clears local state regardless of the outcome.
func (c *Client) Logout(ctx context.Context, accessToken, refreshToken string) error {
	payload := map[string]string{"refresh": refreshToken}
	return c.do(ctx, http.MethodPost, "/accounts/auth/logout/", accessToken, payload, nil)
}

// SendOTP requests a one-time code for phone ownership verification.
func (c *Client) SendOTP(ctx context.Context, phoneNumber string) error {
	payload := map[string]string{"phone_number": phoneNumber}
	return c.do(ctx, http.MethodPost, "/accounts/auth/send-otp/", "", payload, nil)
}

// VerifyOTP confirms a one-time code previously sent to the phone number.
func (c *Client) VerifyOTP(ctx context.Context, phoneNumber, code string) error {
	payload := map[string]string{"phone_number": phoneNumber, "otp_code": code}
	return c.do(ctx, http.MethodPost, "/accounts/auth/verify-otp/", "", payload, nil)
}

func mapAuthUser(resp authResponse) (*account.User, error) {
	user, err := account.MapUser(resp.User, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(resp.Tokens.Access) == "" || strings.TrimSpace(resp.Tokens.Refresh) == "" {
		return nil, fmt.Errorf("%w: auth response missing tokens", ErrMalformedResponse)
	}
	return user, nil
}

// loginError folds a 4xx refusal into ErrInvalidCredentials while leaving
// network and malformed-response errors intact.
func loginError(op string, err error) error {
	if IsNetwork(err) || errors.Is(err, ErrMalformedResponse) {
		return err
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError {
		if apiErr.Message != "" {
			return fmt.Errorf("%s: %w: %s", op, ErrInvalidCredentials, apiErr.Message)
		}
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if errors.Is(err, ErrUnauthorized) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	return err
}

// do executes one JSON request. Transport failures come back as
// *NetworkError, a 401 as ErrUnauthorized, other error statuses as *APIError,
// and an undecodable success body as ErrMalformedResponse.
func (c *Client) do(ctx context.Context, method, path, token string, body, out any) error {
	if c == nil {
		return errors.New("nil client")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readAPIMessage(resp.Body)}
	}

	if out == nil {
		drain(resp.Body)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &NetworkError{Op: method + " " + path, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// readAPIMessage extracts the human-readable error the backend places under
// "detail" or "message"; field-validation maps are flattened.
func readAPIMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 8192))
	if err != nil {
		return ""
	}

	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}

	for _, key := range []string{"detail", "message", "error"} {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}

	parts := make([]string, 0, len(payload))
	for field, v := range payload {
		switch vv := v.(type) {
		case string:
			parts = append(parts, field+": "+vv)
		case []any:
			for _, item := range vv {
				if s, ok := item.(string); ok {
					parts = append(parts, field+": "+s)
				}
			}
		}
	}
	return strings.Join(parts, "; ")
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 1<<20))
}

func allowInsecureHTTP() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("FAYDO_ALLOW_INSECURE_HTTP")))
	switch value {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func ensureHTTPS(raw string, allowInsecure bool) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse api url: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		if allowInsecure {
			return nil
		}
		return fmt.Errorf("api url must use https: %s", raw)
	case "":
		return fmt.Errorf("api url must include a scheme: %s", raw)
	default:
		return fmt.Errorf("api url must use https: %s", raw)
	}
}
