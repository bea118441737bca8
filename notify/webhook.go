package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// SignatureHeader carries the hex HMAC-SHA256 of the request body when a
// signing key is configured.
const SignatureHeader = "X-MFA-Signature"

type WebhookConfig struct {
	BaseURL    string
	SigningKey string
	Timeout    time.Duration
	RetryCount int
	// RatePerSecond caps outbound requests. Zero disables throttling.
	RatePerSecond float64
	Burst         int
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

// Webhook posts messages as JSON to BaseURL/sms and BaseURL/email.
type Webhook struct {
	client     *resty.Client
	signingKey string
	limiter    *rate.Limiter
}

func NewWebhook(cfg WebhookConfig) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	cli := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})

	w := &Webhook{client: cli, signingKey: cfg.SigningKey}
	if cfg.RatePerSecond > 0 {
		w.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return w
}

func (w *Webhook) SendSMS(ctx context.Context, phone, message string) error {
	return w.post(ctx, "/sms", smsPayload{To: phone, Message: message})
}

func (w *Webhook) SendEmail(ctx context.Context, email Email) error {
	return w.post(ctx, "/email", email)
}

func (w *Webhook) post(ctx context.Context, path string, payload any) error {
	if w.limiter != nil {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encode payload", ErrDeliveryFailed)
	}

	req := w.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if w.signingKey != "" {
		req.SetHeader(SignatureHeader, sign(body, w.signingKey))
	}

	resp, err := req.Post(path)
	if err != nil {
		return fmt.Errorf("%w: %s request: %v", ErrDeliveryFailed, strings.TrimPrefix(path, "/"), err)
	}
	if resp.IsError() {
		return fmt.Errorf("%w: %s gateway returned %d", ErrDeliveryFailed, strings.TrimPrefix(path, "/"), resp.StatusCode())
	}
	return nil
}

func sign(body []byte, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
