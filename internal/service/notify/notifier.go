package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/metrics"
	"github.com/familyhub/aniversaris/internal/pkg/logger"
	"github.com/familyhub/aniversaris/internal/pkg/phone"
	"github.com/familyhub/aniversaris/internal/service/sending"
)

// DefaultSendTimeout bounds one provider call.
const DefaultSendTimeout = 20 * time.Second

// Detail statuses.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Skip reasons reported in details.
const (
	reasonNoEmail     = "No email"
	reasonNoPhone     = "No phone"
	reasonBadPhone    = "Invalid phone"
	reasonAlreadySent = "Already sent today"
	reasonInFlight    = "Send already in progress"
)

// Detail is the outcome for one recipient.
type Detail struct {
	Name    string         `json:"nom"`
	Channel domain.Channel `json:"channel"`
	Status  string         `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// Summary counts the outcomes of one batch.
type Summary struct {
	Sent    int      `json:"sent"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Details []Detail `json:"details"`
}

func (s *Summary) add(d Detail) {
	switch d.Status {
	case StatusSent:
		s.Sent++
	case StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Details = append(s.Details, d)
}

// ReminderSummary is the result of the eve-of-birthday run.
type ReminderSummary struct {
	Birthdays []string `json:"birthdays"`
	Email     Summary  `json:"email"`
	SMS       Summary  `json:"sms"`
}

// Notifier sends the daily batches. Recipients are processed sequentially
// and every attempt goes through the gate.
type Notifier struct {
	selector    *Selector
	gate        *Gate
	settings    Settings
	renderer    *Renderer
	email       sending.EmailSender
	sms         sending.SMSSender
	sendTimeout time.Duration
	log         *zap.Logger
	metrics     *metrics.Metrics
}

// Option customizes a Notifier.
type Option func(*Notifier)

// WithEmail sets the email transport. Without one the email channel is
// reported as disabled.
func WithEmail(s sending.EmailSender) Option { return func(n *Notifier) { n.email = s } }

// WithSMS sets the SMS transport.
func WithSMS(s sending.SMSSender) Option { return func(n *Notifier) { n.sms = s } }

// WithSendTimeout bounds each provider call.
func WithSendTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.sendTimeout = d
		}
	}
}

// WithLogger sets the notifier logger.
func WithLogger(l *zap.Logger) Option { return func(n *Notifier) { n.log = l } }

// WithMetrics attaches counters.
func WithMetrics(m *metrics.Metrics) Option { return func(n *Notifier) { n.metrics = m } }

// NewNotifier wires a notifier.
func NewNotifier(selector *Selector, gate *Gate, settings Settings, renderer *Renderer, opts ...Option) *Notifier {
	n := &Notifier{
		selector:    selector,
		gate:        gate,
		settings:    settings,
		renderer:    renderer,
		sendTimeout: DefaultSendTimeout,
		log:         zap.NewNop(),
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Calendar returns the notifier's calendar.
func (n *Notifier) Calendar() *Calendar { return n.selector.Calendar() }

func (n *Notifier) channelOn(ctx context.Context, ch domain.Channel) (bool, error) {
	switch ch {
	case domain.ChannelEmail:
		if n.email == nil {
			return false, nil
		}
	case domain.ChannelSMS:
		if n.sms == nil {
			return false, nil
		}
	}
	return n.settings.ChannelEnabled(ctx, ch)
}

func (n *Notifier) precheck(ctx context.Context, ch domain.Channel) error {
	if n.settings.Maintenance(ctx) {
		return domain.ErrMaintenance
	}
	on, err := n.channelOn(ctx, ch)
	if err != nil {
		return err
	}
	if !on {
		return ErrChannelDisabled
	}
	return nil
}

// SendBirthdayEmails congratulates everyone whose birthday is today. force
// bypasses the once-per-day check.
func (n *Notifier) SendBirthdayEmails(ctx context.Context, force bool) (*Summary, error) {
	if err := n.precheck(ctx, domain.ChannelEmail); err != nil {
		return nil, err
	}
	persons, err := n.selector.TodayBirthdays(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Details: []Detail{}}
	if len(persons) == 0 {
		return sum, n.logNoBirthdays(ctx, domain.ChannelEmail)
	}

	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if p.Email == "" {
			sum.add(Detail{Name: p.Name, Channel: domain.ChannelEmail, Status: StatusSkipped, Error: reasonNoEmail})
			continue
		}
		sum.add(n.deliver(ctx, attempt{
			channel:  domain.ChannelEmail,
			category: domain.CategoryBirthday,
			person:   p,
			address:  p.Email,
			force:    force,
			send: func(ctx context.Context) domain.SendResult {
				msg, err := n.renderer.BirthdayEmail(p)
				if err != nil {
					return sending.Failed(err)
				}
				return n.email.SendEmail(ctx, p.Email, msg.Subject, msg.HTML)
			},
		}))
	}

	n.log.Info("birthday emails done",
		zap.Int("sent", sum.Sent), zap.Int("skipped", sum.Skipped), zap.Int("failed", sum.Failed))
	return sum, nil
}

// SendBirthdaySMS is SendBirthdayEmails over SMS. Phones are normalized to
// Spanish E.164 numbers and anything else is skipped.
func (n *Notifier) SendBirthdaySMS(ctx context.Context) (*Summary, error) {
	if err := n.precheck(ctx, domain.ChannelSMS); err != nil {
		return nil, err
	}
	persons, err := n.selector.TodayBirthdays(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Details: []Detail{}}
	if len(persons) == 0 {
		return sum, n.logNoBirthdays(ctx, domain.ChannelSMS)
	}

	for _, p := range persons {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		number, reason := smsAddress(p)
		if reason != "" {
			sum.add(Detail{Name: p.Name, Channel: domain.ChannelSMS, Status: StatusSkipped, Error: reason})
			continue
		}
		sum.add(n.deliver(ctx, attempt{
			channel:  domain.ChannelSMS,
			category: domain.CategoryBirthday,
			person:   p,
			address:  number,
			send: func(ctx context.Context) domain.SendResult {
				text, err := n.renderer.BirthdaySMS(p)
				if err != nil {
					return sending.Failed(err)
				}
				return n.sms.SendSMS(ctx, number, text)
			},
		}))
	}

	n.log.Info("birthday sms done",
		zap.Int("sent", sum.Sent), zap.Int("skipped", sum.Skipped), zap.Int("failed", sum.Failed))
	return sum, nil
}

// SendReminders tells every active member who is not celebrating that
// tomorrow is someone's birthday. Nothing is sent or logged when tomorrow
// has no birthdays. Email and SMS are gated separately.
func (n *Notifier) SendReminders(ctx context.Context) (*ReminderSummary, error) {
	if n.settings.Maintenance(ctx) {
		return nil, domain.ErrMaintenance
	}
	emailOn, err := n.channelOn(ctx, domain.ChannelEmail)
	if err != nil {
		return nil, err
	}
	smsOn, err := n.channelOn(ctx, domain.ChannelSMS)
	if err != nil {
		return nil, err
	}
	if !emailOn && !smsOn {
		return nil, ErrChannelDisabled
	}

	tomorrow := n.selector.Calendar().Tomorrow()
	birthdays, err := n.selector.On(ctx, tomorrow)
	if err != nil {
		return nil, err
	}
	out := &ReminderSummary{Birthdays: []string{}, Email: Summary{Details: []Detail{}}, SMS: Summary{Details: []Detail{}}}
	if len(birthdays) == 0 {
		return out, nil
	}

	celebrating := make(map[int64]bool, len(birthdays))
	for _, p := range birthdays {
		celebrating[p.ID] = true
		out.Birthdays = append(out.Birthdays, p.Name)
	}

	var msg Message
	var text string
	if emailOn {
		if msg, err = n.renderer.ReminderEmail(birthdays, tomorrow.Year()); err != nil {
			return nil, err
		}
	}
	if smsOn {
		if text, err = n.renderer.ReminderSMS(birthdays, tomorrow.Year()); err != nil {
			return nil, err
		}
	}

	members, err := n.selector.ActiveMembers(ctx)
	if err != nil {
		return nil, err
	}
	for _, m := range members {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if celebrating[m.ID] {
			continue
		}
		if emailOn && m.Email != "" {
			out.Email.add(n.deliver(ctx, attempt{
				channel:  domain.ChannelEmail,
				category: domain.CategoryReminder,
				person:   m,
				address:  m.Email,
				send: func(ctx context.Context) domain.SendResult {
					return n.email.SendEmail(ctx, m.Email, msg.Subject, msg.HTML)
				},
			}))
		}
		if smsOn && m.Phone != "" {
			number, reason := smsAddress(m)
			if reason != "" {
				out.SMS.add(Detail{Name: m.Name, Channel: domain.ChannelSMS, Status: StatusSkipped, Error: reason})
				continue
			}
			out.SMS.add(n.deliver(ctx, attempt{
				channel:  domain.ChannelSMS,
				category: domain.CategoryReminder,
				person:   m,
				address:  number,
				send: func(ctx context.Context) domain.SendResult {
					return n.sms.SendSMS(ctx, number, text)
				},
			}))
		}
	}

	n.log.Info("reminders done",
		zap.Strings("birthdays", out.Birthdays),
		zap.Int("email_sent", out.Email.Sent),
		zap.Int("sms_sent", out.SMS.Sent),
		zap.Int("failed", out.Email.Failed+out.SMS.Failed))
	return out, nil
}

// WasAlreadySent reports whether the person already had an attempt today.
func (n *Notifier) WasAlreadySent(ctx context.Context, ch domain.Channel, personID int64, cat domain.Category) (bool, error) {
	return n.gate.WasAlreadySent(ctx, ch, domain.PersonRecipient(personID), cat)
}

type attempt struct {
	channel  domain.Channel
	category domain.Category
	person   domain.Person
	address  string
	force    bool
	send     func(ctx context.Context) domain.SendResult
}

// deliver runs one gated attempt and returns its detail. Errors never
// escape: they become a failed or skipped detail.
func (n *Notifier) deliver(ctx context.Context, a attempt) Detail {
	d := Detail{Name: a.person.Name, Channel: a.channel}
	key := domain.PersonRecipient(a.person.ID)

	ticket, err := n.gate.Begin(ctx, a.channel, key, a.category, a.force)
	switch {
	case errors.Is(err, ErrAlreadySent):
		d.Status, d.Error = StatusSkipped, reasonAlreadySent
		return d
	case errors.Is(err, ErrInFlight):
		d.Status, d.Error = StatusSkipped, reasonInFlight
		return d
	case err != nil:
		n.log.Error("gate check failed", zap.String("recipient", key), zap.Error(err))
		d.Status, d.Error = StatusFailed, err.Error()
		return d
	}

	sctx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	res := a.send(sctx)
	cancel()

	id := a.person.ID
	rec := domain.NotificationRecord{
		PersonID:      &id,
		RecipientName: a.person.Name,
		Address:       a.address,
		Outcome:       domain.OutcomeFailed,
		ProviderID:    res.ProviderID,
		Error:         res.Error,
	}
	if res.Success {
		rec.Outcome = domain.OutcomeSuccess
		d.Status = StatusSent
	} else {
		d.Status, d.Error = StatusFailed, res.Error
	}

	fields := []zap.Field{
		zap.String("channel", string(a.channel)),
		zap.String("category", string(a.category)),
		zap.String("recipient", key),
		addressField(a.channel, a.address),
	}
	if res.Success {
		n.log.Info("notification sent", append(fields, zap.String("provider_id", res.ProviderID))...)
	} else {
		n.log.Warn("notification failed", append(fields, zap.String("error", res.Error))...)
	}

	if err := ticket.Record(ctx, rec); err != nil {
		// The provider call already happened, so the detail keeps its status.
		n.log.Error("record notification", append(fields, zap.Error(err))...)
	}
	n.metrics.IncNotification(string(a.channel), string(a.category), string(rec.Outcome))
	return d
}

func (n *Notifier) logNoBirthdays(ctx context.Context, ch domain.Channel) error {
	n.log.Info("no birthdays today", zap.String("channel", string(ch)))
	n.metrics.IncNotification(string(ch), string(domain.CategoryBirthday), string(domain.OutcomeNoBirthdays))
	return n.gate.Log(ctx, domain.NotificationRecord{
		RecipientKey:  domain.SystemRecipient,
		RecipientName: domain.SystemRecipient,
		Category:      domain.CategoryBirthday,
		Channel:       ch,
		Outcome:       domain.OutcomeNoBirthdays,
	})
}

func smsAddress(p domain.Person) (string, string) {
	if p.Phone == "" {
		return "", reasonNoPhone
	}
	number, ok := phone.NormalizeES(p.Phone)
	if !ok {
		return "", reasonBadPhone
	}
	return number, ""
}

func addressField(ch domain.Channel, addr string) zap.Field {
	if ch == domain.ChannelSMS {
		return logger.Phone("address", addr)
	}
	return logger.Email("address", addr)
}
