package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/httputil"
	"github.com/familyhub/aniversaris/internal/service/notify"
)

type summaryResponse struct {
	Success bool `json:"success"`
	*notify.Summary
}

type reminderResponse struct {
	Success bool `json:"success"`
	*notify.ReminderSummary
}

type disabledResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// respondDisabled answers a switched-off channel with 200 so the scheduler
// that triggers the endpoint does not retry.
func respondDisabled(w http.ResponseWriter, what string) {
	httputil.OK(w, disabledResponse{Error: what + " sending is disabled"})
}

// SendBirthdayEmails handles POST /api/notify/birthday-emails?force=true.
// An optional {"force": true} body does the same.
func (h *Handlers) SendBirthdayEmails(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Force bool `json:"force"`
	}
	if !httputil.Decode(w, r, &in) {
		return
	}
	summary, err := h.notifier.SendBirthdayEmails(r.Context(), in.Force || queryFlag(r, "force"))
	switch {
	case errors.Is(err, notify.ErrChannelDisabled):
		respondDisabled(w, "Email")
	case err != nil:
		h.respondError(w, r, err)
	default:
		httputil.OK(w, summaryResponse{Success: true, Summary: summary})
	}
}

// SendBirthdaySMS handles POST /api/notify/birthday-sms
func (h *Handlers) SendBirthdaySMS(w http.ResponseWriter, r *http.Request) {
	summary, err := h.notifier.SendBirthdaySMS(r.Context())
	switch {
	case errors.Is(err, notify.ErrChannelDisabled):
		respondDisabled(w, "SMS")
	case err != nil:
		h.respondError(w, r, err)
	default:
		httputil.OK(w, summaryResponse{Success: true, Summary: summary})
	}
}

// SendReminders handles POST /api/notify/reminders
func (h *Handlers) SendReminders(w http.ResponseWriter, r *http.Request) {
	summary, err := h.notifier.SendReminders(r.Context())
	switch {
	case errors.Is(err, notify.ErrChannelDisabled):
		respondDisabled(w, "Reminder")
	case err != nil:
		h.respondError(w, r, err)
	default:
		httputil.OK(w, reminderResponse{Success: true, ReminderSummary: summary})
	}
}

// ListNotifications handles GET /api/notifications?date=YYYY-MM-DD. The
// date defaults to today in the roster's timezone.
func (h *Handlers) ListNotifications(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = h.notifier.Calendar().LocalDate()
	} else if _, err := time.Parse(notify.DateLayout, date); err != nil {
		h.respondError(w, r, &domain.ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
		return
	}

	records, err := h.notifications.ListByDate(r.Context(), date)
	if err != nil {
		h.respondError(w, r, domain.Upstream("list notifications", err))
		return
	}
	if records == nil {
		records = []domain.NotificationRecord{}
	}
	respondData(w, http.StatusOK, records)
}

// WasAlreadySent handles
// GET /api/notifications/sent?channel=EMAIL&category=BIRTHDAY&person_id=N
func (h *Handlers) WasAlreadySent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ch := domain.Channel(strings.ToUpper(q.Get("channel")))
	if ch != domain.ChannelEmail && ch != domain.ChannelSMS {
		h.respondError(w, r, &domain.ValidationError{Field: "channel", Message: "channel must be EMAIL or SMS"})
		return
	}
	cat := domain.Category(strings.ToUpper(q.Get("category")))
	if cat == "" {
		cat = domain.CategoryBirthday
	}
	if cat != domain.CategoryBirthday && cat != domain.CategoryReminder {
		h.respondError(w, r, &domain.ValidationError{Field: "category", Message: "category must be BIRTHDAY or REMINDER"})
		return
	}
	id, err := strconv.ParseInt(q.Get("person_id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, r, &domain.ValidationError{Field: "person_id", Message: "invalid person id"})
		return
	}

	sent, err := h.notifier.WasAlreadySent(r.Context(), ch, id, cat)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"sent": sent})
}
