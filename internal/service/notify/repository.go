package notify

import (
	"context"

	"github.com/familyhub/aniversaris/internal/domain"
)

// LogRepository is the append-only notification log.
type LogRepository interface {
	Append(ctx context.Context, rec *domain.NotificationRecord) error
	CountAttempts(ctx context.Context, ch domain.Channel, recipientKey string, cat domain.Category, localDate string) (int, error)
	ListByDate(ctx context.Context, localDate string) ([]domain.NotificationRecord, error)
}

// PersonSource is the roster read side used for selection.
type PersonSource interface {
	ListByBirthday(ctx context.Context, day, month int) ([]domain.Person, error)
	ListActive(ctx context.Context) ([]domain.Person, error)
}

// Settings exposes the runtime switches.
type Settings interface {
	Maintenance(ctx context.Context) bool
	ChannelEnabled(ctx context.Context, ch domain.Channel) (bool, error)
}
