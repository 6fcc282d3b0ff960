// Package sending defines the transports the notifier delivers through.
//
// Each provider (SES, Gmail, Twilio) implements one of these interfaces in
// internal/channel. A transport never returns an error: provider and
// network failures are reported in the result so the caller can log them
// as a FAILED attempt and move on to the next recipient.
package sending

import (
	"context"

	"github.com/familyhub/aniversaris/internal/domain"
)

// EmailSender delivers one HTML email. Implementations must be safe for
// concurrent use and honor ctx deadlines.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, html string) domain.SendResult
}

// SMSSender delivers one text message to an E.164 number.
type SMSSender interface {
	SendSMS(ctx context.Context, e164, text string) domain.SendResult
}

// Failed builds a failure result from err.
func Failed(err error) domain.SendResult {
	if err == nil {
		return domain.SendResult{Success: false, Error: "unknown error"}
	}
	return domain.SendResult{Success: false, Error: err.Error()}
}
