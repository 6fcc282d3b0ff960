package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/service/sending"
)

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	cfg    config.SMSConfig
	client *resty.Client
	log    *zap.Logger
}

type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

type twilioError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// NewTwilioSender creates a Twilio sender.
func NewTwilioSender(cfg config.SMSConfig, log *zap.Logger) *TwilioSender {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetBasicAuth(cfg.AccountSID, cfg.AuthToken).
		SetHeader("Accept", "application/json").
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		AddRetryCondition(func(r *resty.Response, _ error) bool {
			return r != nil && r.StatusCode() == http.StatusTooManyRequests
		})
	return &TwilioSender{cfg: cfg, client: client, log: log}
}

// SendSMS delivers one text message. Only 201 Created is a success.
func (t *TwilioSender) SendSMS(ctx context.Context, e164, text string) domain.SendResult {
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" || t.cfg.From == "" {
		return sending.Failed(errors.New("Twilio credentials not configured"))
	}

	var msg twilioMessage
	var apiErr twilioError
	resp, err := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"To":   e164,
			"From": t.cfg.From,
			"Body": text,
		}).
		SetResult(&msg).
		SetError(&apiErr).
		SetPathParam("sid", t.cfg.AccountSID).
		Post("/2010-04-01/Accounts/{sid}/Messages.json")
	if err != nil {
		t.log.Warn("twilio send failed", logger.Phone("to", e164), zap.Error(err))
		return sending.Failed(err)
	}

	if resp.StatusCode() != http.StatusCreated {
		reason := apiErr.Message
		if reason == "" {
			reason = resp.Status()
		}
		t.log.Warn("twilio send rejected", logger.Phone("to", e164),
			zap.Int("status", resp.StatusCode()), zap.Int("code", apiErr.Code))
		return domain.SendResult{Error: fmt.Sprintf("twilio: %s", reason)}
	}
	return domain.SendResult{Success: true, ProviderID: msg.SID}
}
