package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"lisst-auth/internal/config"
	"lisst-auth/internal/models"
	"lisst-auth/internal/util"
)

var ErrMissingUser = errors.New("backend response did not include a user record")

// Client is a typed request layer over the remote finance backend. Every
// failure mode (transport error, non-2xx status, malformed body) is collapsed
// into a single error message so callers never branch on error shape. No call
// is ever retried here.
type Client struct {
	baseURL    string
	healthURL  string
	templateID string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    cfg.Backend.BaseURL,
		healthURL:  cfg.Backend.HealthURL(),
		templateID: cfg.Backend.DLTTemplateID,
		timeout:    cfg.Backend.RequestTimeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type apiResponse struct {
	Success bool                `json:"success"`
	User    *models.UserRecord  `json:"user,omitempty"`
	Users   []models.UserRecord `json:"users,omitempty"`
	Error   string              `json:"error,omitempty"`
	Message string              `json:"message,omitempty"`
}

type submitUserDataRequest struct {
	PhoneNumber string            `json:"phoneNumber"`
	UserData    map[string]string `json:"userData"`
	IsLogin     bool              `json:"isLogin"`
	TemplateID  string            `json:"DLT_TE_ID"`
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

type resendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	TemplateID  string `json:"DLT_TE_ID"`
}

// SubmitUserData initiates OTP issuance. userData carries name/email at
// signup and is empty for login; requiredness is the caller's concern, this
// layer passes it through unchanged.
func (c *Client) SubmitUserData(ctx context.Context, phoneNumber string, userData map[string]string, isLogin bool) error {
	if userData == nil {
		userData = map[string]string{}
	}
	body := submitUserDataRequest{
		PhoneNumber: phoneNumber,
		UserData:    userData,
		IsLogin:     isLogin,
		TemplateID:  c.templateID,
	}
	var resp apiResponse
	return c.doRequest(ctx, http.MethodPost, "/submit-user-data", body, &resp)
}

// VerifyOTP submits the 6-digit code; the server is the sole arbiter of
// correctness. Returns the fully populated user record on success.
func (c *Client) VerifyOTP(ctx context.Context, phoneNumber, code string) (*models.UserRecord, error) {
	body := verifyOTPRequest{PhoneNumber: phoneNumber, OTP: code}
	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodPost, "/verify-otp", body, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrMissingUser
	}
	return resp.User, nil
}

func (c *Client) ResendOTP(ctx context.Context, phoneNumber string) error {
	body := resendOTPRequest{PhoneNumber: phoneNumber, TemplateID: c.templateID}
	var resp apiResponse
	return c.doRequest(ctx, http.MethodPost, "/resend-otp", body, &resp)
}

func (c *Client) GetUserProfile(ctx context.Context, id string) (*models.UserRecord, error) {
	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodGet, "/get-user-profile/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrMissingUser
	}
	return resp.User, nil
}

func (c *Client) GetUserByPhone(ctx context.Context, phoneNumber string) (*models.UserRecord, error) {
	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodGet, "/get-user-by-phone/"+url.PathEscape(phoneNumber), nil, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrMissingUser
	}
	return resp.User, nil
}

// UpdateUserProfile sends a partial update; the returned record is the
// server's authoritative copy, not a local merge.
func (c *Client) UpdateUserProfile(ctx context.Context, phoneNumber string, fields map[string]interface{}) (*models.UserRecord, error) {
	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodPut, "/update-user-profile/"+url.PathEscape(phoneNumber), fields, &resp); err != nil {
		return nil, err
	}
	if resp.User == nil {
		return nil, ErrMissingUser
	}
	return resp.User, nil
}

func (c *Client) DeleteUserAccount(ctx context.Context, phoneNumber string) error {
	var resp apiResponse
	return c.doRequest(ctx, http.MethodDelete, "/delete-user-account/"+url.PathEscape(phoneNumber), nil, &resp)
}

// GetAllUsers lists every account (admin use).
func (c *Client) GetAllUsers(ctx context.Context) ([]models.UserRecord, error) {
	var resp apiResponse
	if err := c.doRequest(ctx, http.MethodGet, "/get-all-users", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// HealthCheck probes the backend liveness endpoint, which lives on the base
// URL without the /api suffix.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.healthURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check failed: %d", resp.StatusCode)
	}
	return nil
}

// TestConnection swallows all errors into a boolean.
func (c *Client) TestConnection(ctx context.Context) bool {
	if err := c.HealthCheck(ctx); err != nil {
		c.logger.Warn("Backend connection test failed", util.ErrorField(err))
		return false
	}
	return true
}

// doRequest performs one HTTP round-trip against the backend. On a non-2xx
// status the body is parsed as JSON to extract an error field, falling back
// to the raw body text, falling back to a synthesized status line. The
// resulting error always carries a single human-readable message.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed",
			util.String("method", method),
			util.String("endpoint", endpoint),
			util.ErrorField(err),
		)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.New(c.collapseError(resp))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("invalid response body: %v", err)
		}
	}

	c.logger.Debug("Backend request completed",
		util.String("method", method),
		util.String("endpoint", endpoint),
		util.Int("status", resp.StatusCode),
		util.Duration("duration", time.Since(start)),
	)

	return nil
}

// collapseError reduces the three failure sources of a non-2xx response to
// one message string: the JSON error field when present, else the raw body,
// else the status line.
func (c *Client) collapseError(resp *http.Response) string {
	raw, _ := io.ReadAll(resp.Body)

	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error != "" {
		return parsed.Error
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		return string(raw)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
}
