package notify

//go:generate mockgen -source=notify.go -destination=../internal/mock/notifier_mock.go -package=mock

import (
	"context"
	"errors"
)

// ErrDeliveryFailed is returned when a gateway rejects or cannot accept a
// message.
var ErrDeliveryFailed = errors.New("notify: delivery failed")

// Email is a templated email message.
type Email struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject"`
	Template string         `json:"template"`
	Data     map[string]any `json:"data,omitempty"`
}

// Notifier sends SMS and email messages. Implementations must be safe for
// concurrent use.
type Notifier interface {
	SendSMS(ctx context.Context, phone, message string) error
	SendEmail(ctx context.Context, email Email) error
}

// Nop discards every message.
type Nop struct{}

func (Nop) SendSMS(context.Context, string, string) error { return nil }
func (Nop) SendEmail(context.Context, Email) error         { return nil }
