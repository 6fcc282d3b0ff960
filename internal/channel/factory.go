package channel

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/service/sending"
)

// NewEmailSender returns the transport selected by cfg.Provider.
func NewEmailSender(ctx context.Context, cfg config.EmailConfig, log *zap.Logger) (sending.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		return NewSESSender(ctx, cfg, log)
	case "gmail", "":
		return NewGmailSender(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
