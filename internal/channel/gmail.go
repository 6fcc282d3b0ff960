package channel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/httpretry"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/service/sending"
)

const defaultGmailBaseURL = "https://gmail.googleapis.com"

// GmailSender sends email as the configured Gmail account through the
// Gmail REST API, authenticated with an OAuth2 refresh token.
type GmailSender struct {
	cfg     config.GmailConfig
	from    string
	baseURL string
	client  httpretry.HTTPDoer
	log     *zap.Logger
}

// GmailOption customizes a GmailSender.
type GmailOption func(*gmailOptions)

type gmailOptions struct {
	tokens oauth2.TokenSource
}

// WithTokenSource replaces the refresh-token source.
func WithTokenSource(ts oauth2.TokenSource) GmailOption {
	return func(o *gmailOptions) { o.tokens = ts }
}

// NewGmailSender creates a Gmail sender. Sends fail with a clear message
// when the OAuth2 credentials are incomplete.
func NewGmailSender(cfg config.EmailConfig, log *zap.Logger, opts ...GmailOption) *GmailSender {
	if log == nil {
		log = zap.NewNop()
	}
	var o gmailOptions
	for _, fn := range opts {
		fn(&o)
	}
	if o.tokens == nil {
		oc := &oauth2.Config{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: cfg.Gmail.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"https://www.googleapis.com/auth/gmail.send"},
		}
		o.tokens = oc.TokenSource(context.Background(), &oauth2.Token{RefreshToken: cfg.Gmail.RefreshToken})
	}

	httpClient := oauth2.NewClient(context.Background(), o.tokens)
	if t := cfg.Gmail.Timeout(); t > 0 {
		httpClient.Timeout = t
	}

	baseURL := strings.TrimRight(cfg.Gmail.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGmailBaseURL
	}
	from := cfg.From
	if from == "" {
		from = cfg.Gmail.User
	}
	return &GmailSender{
		cfg:     cfg.Gmail,
		from:    formatFrom(cfg.FromName, from),
		baseURL: baseURL,
		client:  httpretry.NewRetryClient(httpClient, 2, httpretry.WithLogger(log)),
		log:     log,
	}
}

type gmailSendResponse struct {
	ID    string `json:"id"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SendEmail delivers one HTML message.
func (g *GmailSender) SendEmail(ctx context.Context, to, subject, html string) domain.SendResult {
	if !g.cfg.Configured() {
		return sending.Failed(errors.New("Gmail OAuth2 credentials not configured"))
	}

	raw := base64.RawURLEncoding.EncodeToString(buildMIME(g.from, to, subject, html))
	payload, err := json.Marshal(map[string]string{"raw": raw})
	if err != nil {
		return sending.Failed(err)
	}

	endpoint := fmt.Sprintf("%s/gmail/v1/users/%s/messages/send", g.baseURL, url.PathEscape(g.cfg.User))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return sending.Failed(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn("gmail send failed", logger.Email("to", to), zap.Error(err))
		return sending.Failed(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	var out gmailSendResponse
	_ = json.Unmarshal(body, &out)
	if resp.StatusCode/100 != 2 {
		msg := fmt.Sprintf("gmail returned status %d", resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg += ": " + out.Error.Message
		}
		g.log.Warn("gmail send rejected", logger.Email("to", to), zap.Int("status", resp.StatusCode))
		return domain.SendResult{Error: msg}
	}
	return domain.SendResult{Success: true, ProviderID: out.ID}
}
