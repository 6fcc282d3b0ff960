package channel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/familyhub/aniversaris/internal/config"
)

func headerValue(msg []byte, name string) string {
	for _, line := range strings.Split(string(msg), "\r\n") {
		if line == "" {
			break
		}
		if k, v, ok := strings.Cut(line, ": "); ok && strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// SES
// ---------------------------------------------------------------------------

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-123")}, nil
}

func TestSESSender(t *testing.T) {
	api := &fakeSES{}
	s := newSESSender(api, formatFrom("Família", "familia@example.org"), nil)

	res := s.SendEmail(context.Background(), "anna@example.org", "Feliç Aniversari, Anna! 🎂", "<p>hola</p>")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "ses-123", res.ProviderID)
	assert.Equal(t, []string{"anna@example.org"}, api.in.Destination.ToAddresses)
	assert.Equal(t, "Feliç Aniversari, Anna! 🎂", aws.ToString(api.in.Content.Simple.Subject.Data))
	assert.Equal(t, "<p>hola</p>", aws.ToString(api.in.Content.Simple.Body.Html.Data))
	assert.Contains(t, aws.ToString(api.in.FromEmailAddress), "<familia@example.org>")

	api.err = errors.New("MessageRejected: address not verified")
	res = s.SendEmail(context.Background(), "anna@example.org", "s", "b")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "MessageRejected")
}

func TestSESSenderWithoutFrom(t *testing.T) {
	res := newSESSender(&fakeSES{}, "", nil).SendEmail(context.Background(), "a@example.org", "s", "b")
	assert.False(t, res.Success)
}

// ---------------------------------------------------------------------------
// Gmail
// ---------------------------------------------------------------------------

func gmailConfig(baseURL string) config.EmailConfig {
	return config.EmailConfig{
		Provider: "gmail",
		FromName: "La Família",
		Gmail: config.GmailConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			RefreshToken: "refresh",
			User:         "familia@gmail.com",
			BaseURL:      baseURL,
		},
	}
}

func TestGmailSender(t *testing.T) {
	var raw string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gmail/v1/users/familia@gmail.com/messages/send", r.URL.Path)
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		raw = body["raw"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"18c2f","threadId":"18c2f"}`))
	}))
	defer srv.Close()

	g := NewGmailSender(gmailConfig(srv.URL), nil,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "access-token"})))
	res := g.SendEmail(context.Background(), "anna@example.org", "Feliç Aniversari, Anna! 🎂", "<h1>Hola</h1>")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "18c2f", res.ProviderID)

	msg, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Equal(t, "anna@example.org", headerValue(msg, "To"))
	assert.Contains(t, headerValue(msg, "From"), "<familia@gmail.com>")
	subject, err := new(mime.WordDecoder).DecodeHeader(headerValue(msg, "Subject"))
	require.NoError(t, err)
	assert.Equal(t, "Feliç Aniversari, Anna! 🎂", subject)

	_, body, _ := strings.Cut(string(msg), "\r\n\r\n")
	html, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(body, "\r\n", ""))
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hola</h1>", string(html))
}

func TestGmailSenderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":400,"message":"Invalid To header"}}`))
	}))
	defer srv.Close()

	g := NewGmailSender(gmailConfig(srv.URL), nil,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "t"})))
	res := g.SendEmail(context.Background(), "bad", "s", "b")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid To header")
}

func TestGmailSenderNotConfigured(t *testing.T) {
	res := NewGmailSender(config.EmailConfig{}, nil).SendEmail(context.Background(), "a@example.org", "s", "b")
	assert.False(t, res.Success)
	assert.Equal(t, "Gmail OAuth2 credentials not configured", res.Error)
}

func TestBuildMIMEWrapsBody(t *testing.T) {
	msg := buildMIME("a@example.org", "b@example.org", "hi", strings.Repeat("x", 300))
	_, body, _ := strings.Cut(string(msg), "\r\n\r\n")
	for _, line := range strings.Split(strings.TrimSpace(body), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

// ---------------------------------------------------------------------------
// Twilio
// ---------------------------------------------------------------------------

func TestTwilioSender(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "AC123", user)
		assert.Equal(t, "token", pass)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "+34612345678", r.PostForm.Get("To"))
		assert.Equal(t, "+15005550006", r.PostForm.Get("From"))
		assert.Equal(t, "Felicitats!", r.PostForm.Get("Body"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM42","status":"queued"}`))
	}))
	defer srv.Close()

	s := NewTwilioSender(config.SMSConfig{AccountSID: "AC123", AuthToken: "token", From: "+15005550006", BaseURL: srv.URL}, nil)
	res := s.SendSMS(context.Background(), "+34612345678", "Felicitats!")
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "SM42", res.ProviderID)
}

func TestTwilioSenderRejected(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"The 'To' number is not a valid phone number.","status":400}`))
	}))
	defer srv.Close()

	s := NewTwilioSender(config.SMSConfig{AccountSID: "AC1", AuthToken: "t", From: "+1500", BaseURL: srv.URL}, nil)
	res := s.SendSMS(context.Background(), "+34000", "x")
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "not a valid phone number")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client errors are not retried")
}

func TestTwilioSenderNotConfigured(t *testing.T) {
	res := NewTwilioSender(config.SMSConfig{BaseURL: "http://127.0.0.1:1"}, nil).SendSMS(context.Background(), "+34612345678", "x")
	assert.False(t, res.Success)
	assert.Equal(t, "Twilio credentials not configured", res.Error)
}

func TestNewEmailSenderUnknownProvider(t *testing.T) {
	_, err := NewEmailSender(context.Background(), config.EmailConfig{Provider: "carrier-pigeon"}, nil)
	assert.Error(t, err)

	s, err := NewEmailSender(context.Background(), config.EmailConfig{Provider: "gmail"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &GmailSender{}, s)
}
