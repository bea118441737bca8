package notify

import (
	"context"

	"github.com/MrEthical07/goMFA/secret"
	"github.com/rs/zerolog"
)

// Log records deliveries instead of sending them. Recipients are masked.
// Message bodies are included only when showBody is set, which is meant for
// local development.
type Log struct {
	log      zerolog.Logger
	showBody bool
}

func NewLog(l zerolog.Logger, showBody bool) *Log {
	return &Log{log: l.With().Str("component", "notify").Logger(), showBody: showBody}
}

func (n *Log) SendSMS(_ context.Context, phone, message string) error {
	ev := n.log.Info().Str("channel", "sms").Str("to", secret.MaskPhone(phone))
	if n.showBody {
		ev = ev.Str("message", message)
	}
	ev.Msg("sms queued")
	return nil
}

func (n *Log) SendEmail(_ context.Context, email Email) error {
	ev := n.log.Info().
		Str("channel", "email").
		Str("to", secret.MaskEmail(email.To)).
		Str("subject", email.Subject).
		Str("template", email.Template)
	if n.showBody {
		ev = ev.Interface("data", email.Data)
	}
	ev.Msg("email queued")
	return nil
}
