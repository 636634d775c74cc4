package client

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"bot-builder-go/internal/config"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Trading platforms accepted by the account API.
const (
	PlatformMT5      = "mt5"
	PlatformDXTrade  = "dxtrade"
	PlatformDerivEZ  = "derivez"
	PlatformCTrader  = "ctrader"
	maxRetries       = 3
	defaultBackoff   = time.Second
	passwordEndpoint = "/trading_platform/password_change"
	accountEndpoint  = "/trading_platform/new_account"
)

// AccountClient is the network side of the account screens.
type AccountClient interface {
	ChangePassword(ctx context.Context, req PasswordChangeRequest) error
	CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error)
}

// PasswordChangeRequest changes the trading password of a platform.
type PasswordChangeRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
	Platform    string `json:"platform"`
}

// AccountType selects the kind of account to open.
type AccountType struct {
	Category string `json:"category"` // demo or real
	Type     string `json:"type"`     // all, synthetic or financial
}

// CreateAccountRequest opens a trading account on a platform.
type CreateAccountRequest struct {
	Platform    string      `json:"platform"`
	AccountType AccountType `json:"account_type"`
	Password    string      `json:"password,omitempty"`
}

// Account is a newly created trading account.
type Account struct {
	LoginID  string  `json:"login_id"`
	Platform string  `json:"platform"`
	Currency string  `json:"currency"`
	Balance  float64 `json:"balance"`
}

// RestClient is a rate limited, retrying client for the account API.
type RestClient struct {
	client  *resty.Client
	token   string
	logger  *zap.Logger
	limiter *rate.Limiter
	backoff time.Duration
}

var _ AccountClient = (*RestClient)(nil)

// NewRestClient creates a client for the API configured in cfg.
func NewRestClient(cfg *config.API, logger *zap.Logger) *RestClient {
	return &RestClient{
		client:  resty.New().SetBaseURL(cfg.BaseURL),
		token:   cfg.Token,
		logger:  logger.Named("account-api"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		backoff: defaultBackoff,
	}
}

// ChangePassword validates the new password locally and submits the change.
// A wrong current password yields a *PasswordError; a rejected new password
// yields an *InputValidationFailed.
func (c *RestClient) ChangePassword(ctx context.Context, req PasswordChangeRequest) error {
	if req.OldPassword == "" {
		return &InputValidationFailed{Field: "old_password", Message: "This field is required"}
	}
	if msg := ValidatePassword(req.NewPassword); msg != "" {
		return &InputValidationFailed{Field: "new_password", Message: msg}
	}
	if req.Platform == "" {
		req.Platform = PlatformMT5
	}

	_, err := c.doRequest(ctx, http.MethodPost, passwordEndpoint, c.newRequest(ctx).SetBody(req))
	if err != nil {
		return fmt.Errorf("failed to change password: %w", err)
	}
	c.logger.Info("Trading password changed", zap.String("platform", req.Platform))
	return nil
}

// CreateAccount opens a trading account.
func (c *RestClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*Account, error) {
	if req.Platform == "" {
		return nil, &InputValidationFailed{Field: "platform", Message: "This field is required"}
	}
	if req.AccountType.Category != "demo" && req.AccountType.Category != "real" {
		return nil, &InputValidationFailed{Field: "account_type.category", Message: "Must be demo or real"}
	}

	resp, err := c.doRequest(ctx, http.MethodPost, accountEndpoint,
		c.newRequest(ctx).SetBody(req).SetResult(&Account{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	account := resp.Result().(*Account)
	c.logger.Info("Trading account created",
		zap.String("platform", account.Platform),
		zap.String("login_id", account.LoginID))
	return account, nil
}

func (c *RestClient) newRequest(ctx context.Context) *resty.Request {
	req := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetError(&errorEnvelope{})
	if c.token != "" {
		req.SetAuthToken(c.token)
	}
	return req
}

// doRequest handles the actual request execution with rate limiting and retry logic.
// Rejections carrying an error envelope are returned as typed errors without retrying.
func (c *RestClient) doRequest(ctx context.Context, method, url string, req *resty.Request) (*resty.Response, error) {
	var resp *resty.Response
	var err error

	for i := 0; i < maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		c.logger.Debug("Executing request", zap.String("method", method), zap.String("url", c.client.BaseURL+url))
		resp, err = req.Execute(method, url)

		if err == nil && !resp.IsError() {
			return resp, nil
		}

		shouldRetry := false
		var retryAfter time.Duration

		if err == nil {
			statusCode := resp.StatusCode()
			switch {
			case statusCode == http.StatusTooManyRequests:
				shouldRetry = true
				if seconds, convErr := strconv.Atoi(resp.Header().Get("Retry-After")); convErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			case statusCode >= 500:
				shouldRetry = true
			}
			if !shouldRetry {
				if env, ok := resp.Error().(*errorEnvelope); ok && env.Error != nil {
					return nil, env.typed(statusCode)
				}
				return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
			}
			err = fmt.Errorf("status %s", resp.Status())
		}

		if i == maxRetries-1 {
			break
		}
		if retryAfter == 0 {
			retryAfter = time.Duration(math.Pow(2, float64(i))) * c.backoff
		}

		c.logger.Warn("Request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
