package api

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/assistant"
	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/guard"
	"github.com/familyhub/aniversaris/internal/metrics"
	"github.com/familyhub/aniversaris/internal/photos"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
	"github.com/familyhub/aniversaris/internal/service/importer"
	"github.com/familyhub/aniversaris/internal/service/notify"
	"github.com/familyhub/aniversaris/internal/service/registry"
	"github.com/familyhub/aniversaris/internal/service/settings"
)

// NotificationLog lists the notification log of one local date.
type NotificationLog interface {
	ListByDate(ctx context.Context, localDate string) ([]domain.NotificationRecord, error)
}

// Assistant answers chat questions about the family.
type Assistant interface {
	Ask(ctx context.Context, req assistant.Request) (*assistant.Reply, error)
	Context(ctx context.Context) (string, error)
}

// PhotoUploader stores profile photos.
type PhotoUploader interface {
	Upload(ctx context.Context, personID int64, r io.Reader) (*photos.Photo, error)
}

// Deps are the services the API serves. Assistant, Photos, Guard, Health
// and Metrics are optional.
type Deps struct {
	Registry      *registry.Service
	Importer      *importer.Service
	Selector      *notify.Selector
	Notifier      *notify.Notifier
	Notifications NotificationLog
	Settings      *settings.Service
	Guard         *guard.Guard
	Assistant     Assistant
	Photos        PhotoUploader
	Health        *HealthChecker
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	registry      *registry.Service
	importer      *importer.Service
	selector      *notify.Selector
	notifier      *notify.Notifier
	notifications NotificationLog
	settings      *settings.Service
	guard         *guard.Guard
	assistant     Assistant
	photos        PhotoUploader
	health        *HealthChecker
	metrics       *metrics.Metrics
	log           *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	health := d.Health
	if health == nil {
		health = NewHealthChecker(nil, nil, nil, "")
	}
	return &Handlers{
		registry:      d.Registry,
		importer:      d.Importer,
		selector:      d.Selector,
		notifier:      d.Notifier,
		notifications: d.Notifications,
		settings:      d.Settings,
		guard:         d.Guard,
		assistant:     d.Assistant,
		photos:        d.Photos,
		health:        health,
		metrics:       d.Metrics,
		log:           log,
	}
}

// envelope is the success body shared by the roster endpoints.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data"`
}

func respondData(w http.ResponseWriter, status int, data any) {
	httputil.JSON(w, status, envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, msg string, data any) {
	httputil.JSON(w, status, envelope{Success: true, Message: msg, Data: data})
}

// queryFlag reads a boolean query parameter such as ?force=true.
func queryFlag(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(name)))
	return err == nil && v
}
