package settings

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/config"
	"github.com/familyhub/aniversaris/internal/domain"
)

// Known keys.
const (
	KeyMaintenance  = "maintenance"
	KeyEmailEnabled = "email_enabled"
	KeySMSEnabled   = "sms_enabled"
)

// ErrUnknownKey is returned by Set for keys outside the known set.
var ErrUnknownKey = errors.New("unknown setting")

// Repository stores key/value settings.
type Repository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	All(ctx context.Context) (map[string]string, error)
}

// Service reads and writes settings. The configured maintenance override
// wins over the stored value.
type Service struct {
	repo             Repository
	forceMaintenance bool
	log              *zap.Logger
}

// NewService creates a settings service. forceMaintenance comes from
// configuration (app.maintenance / MAINTENANCE).
func NewService(repo Repository, forceMaintenance bool, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, forceMaintenance: forceMaintenance, log: log}
}

// Maintenance reports whether the service is in maintenance mode. A store
// error is logged and reads as off, so a broken settings table does not
// take the whole API down.
func (s *Service) Maintenance(ctx context.Context) bool {
	if s.forceMaintenance {
		return true
	}
	v, ok, err := s.repo.Get(ctx, KeyMaintenance)
	if err != nil {
		s.log.Warn("read maintenance flag", zap.Error(err))
		return false
	}
	return ok && config.ParseFlag(v)
}

// ChannelEnabled reports whether notifications may go out on ch. Only an
// explicit "false" disables a channel.
func (s *Service) ChannelEnabled(ctx context.Context, ch domain.Channel) (bool, error) {
	key := KeyEmailEnabled
	if ch == domain.ChannelSMS {
		key = KeySMSEnabled
	}
	v, ok, err := s.repo.Get(ctx, key)
	if err != nil {
		return false, domain.Upstream("read "+key, err)
	}
	return !ok || strings.ToLower(strings.TrimSpace(v)) != "false", nil
}

// Set stores a known setting.
func (s *Service) Set(ctx context.Context, key, value string) error {
	switch key {
	case KeyMaintenance, KeyEmailEnabled, KeySMSEnabled:
	default:
		return ErrUnknownKey
	}
	if err := s.repo.Set(ctx, key, strings.TrimSpace(value)); err != nil {
		return domain.Upstream("write "+key, err)
	}
	s.log.Info("setting changed", zap.String("key", key), zap.String("value", value))
	return nil
}

// All returns every stored setting.
func (s *Service) All(ctx context.Context) (map[string]string, error) {
	m, err := s.repo.All(ctx)
	if err != nil {
		return nil, domain.Upstream("list settings", err)
	}
	return m, nil
}
