package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSendSMS(t *testing.T) {
	var got smsPayload
	var signature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sms", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, sign(body, "hook-key"), signature)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{BaseURL: srv.URL + "/", SigningKey: "hook-key"})
	err := w.SendSMS(context.Background(), "+15551234567", "Your verification code is 123456. It expires in 5 minutes.")
	require.NoError(t, err)

	assert.Equal(t, "+15551234567", got.To)
	assert.Contains(t, got.Message, "123456")
	assert.NotEmpty(t, signature)
}

func TestWebhookSendEmail(t *testing.T) {
	var got Email
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/email", r.URL.Path)
		assert.Empty(t, r.Header.Get(SignatureHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{BaseURL: srv.URL})
	err := w.SendEmail(context.Background(), Email{
		To:       "alice@example.com",
		Subject:  "Your verification code",
		Template: "mfa-code",
		Data:     map[string]any{"code": "654321", "expiresInMinutes": 5},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", got.To)
	assert.Equal(t, "mfa-code", got.Template)
	assert.Equal(t, "654321", got.Data["code"])
	assert.EqualValues(t, 5, got.Data["expiresInMinutes"])
}

func TestWebhookGatewayErrorHidesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("bad number"))
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{BaseURL: srv.URL})
	err := w.SendSMS(context.Background(), "+15551234567", "code 999999")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeliveryFailed))
	assert.Contains(t, err.Error(), "400")
	assert.NotContains(t, err.Error(), "999999")
	assert.NotContains(t, err.Error(), "+15551234567")
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{BaseURL: srv.URL, RetryCount: 3})
	require.NoError(t, w.SendSMS(context.Background(), "+15551234567", "hi"))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestWebhookThrottleHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(WebhookConfig{BaseURL: srv.URL, RatePerSecond: 0.01, Burst: 1})
	require.NoError(t, w.SendSMS(context.Background(), "+15551234567", "first"))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := w.SendSMS(ctx, "+15551234567", "second")
	assert.ErrorIs(t, err, ErrDeliveryFailed)
}

func TestLogMasksRecipients(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(zerolog.New(&buf), false)

	require.NoError(t, n.SendSMS(context.Background(), "+15551234567", "Your verification code is 123456."))
	require.NoError(t, n.SendEmail(context.Background(), Email{To: "alice@example.com", Subject: "s", Template: "mfa-code", Data: map[string]any{"code": "123456"}}))

	out := buf.String()
	assert.NotContains(t, out, "+15551234567")
	assert.NotContains(t, out, "alice@example.com")
	assert.NotContains(t, out, "123456")
	assert.Contains(t, out, `"channel":"sms"`)
	assert.Contains(t, out, `"template":"mfa-code"`)
}

func TestLogShowBody(t *testing.T) {
	var buf bytes.Buffer
	n := NewLog(zerolog.New(&buf), true)

	require.NoError(t, n.SendSMS(context.Background(), "+15551234567", "code 424242"))
	assert.Contains(t, buf.String(), "424242")
}
