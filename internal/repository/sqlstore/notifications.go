package sqlstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/familyhub/aniversaris/internal/domain"
)

// NotificationRepo is the append-only notification log.
type NotificationRepo struct{ db *DB }

// NewNotificationRepo creates a notification log repository.
func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

// Append writes one record and sets its id.
func (r *NotificationRepo) Append(ctx context.Context, rec *domain.NotificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.db.now()
	}
	err := r.db.queryRow(ctx, `
		INSERT INTO notification_log (person_id, recipient_key, recipient_name, address, category, channel,
			outcome, provider_id, error, local_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		nullID(rec.PersonID), rec.RecipientKey, rec.RecipientName, rec.Address, string(rec.Category), string(rec.Channel),
		string(rec.Outcome), rec.ProviderID, rec.Error, rec.LocalDate, rec.CreatedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// CountAttempts counts SUCCESS and FAILED entries for one gate key on one
// local date.
func (r *NotificationRepo) CountAttempts(ctx context.Context, ch domain.Channel, recipientKey string, cat domain.Category, localDate string) (int, error) {
	var n int
	err := r.db.queryRow(ctx, `
		SELECT COUNT(*) FROM notification_log
		WHERE channel = ? AND recipient_key = ? AND category = ? AND local_date = ?
		  AND outcome IN (?, ?)`,
		string(ch), recipientKey, string(cat), localDate, string(domain.OutcomeSuccess), string(domain.OutcomeFailed),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return n, nil
}

// ListByDate returns the log entries of one local date in insertion order.
func (r *NotificationRepo) ListByDate(ctx context.Context, localDate string) ([]domain.NotificationRecord, error) {
	rows, err := r.db.query(ctx, `
		SELECT id, person_id, recipient_key, recipient_name, address, category, channel, outcome,
			provider_id, error, local_date, created_at
		FROM notification_log WHERE local_date = ? ORDER BY id`, localDate)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.NotificationRecord
	for rows.Next() {
		var (
			rec                        domain.NotificationRecord
			personID                   sql.NullInt64
			category, channel, outcome string
		)
		if err := rows.Scan(&rec.ID, &personID, &rec.RecipientKey, &rec.RecipientName, &rec.Address, &category,
			&channel, &outcome, &rec.ProviderID, &rec.Error, &rec.LocalDate, timeValue{&rec.CreatedAt}); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		rec.PersonID = idPtr(personID)
		rec.Category = domain.Category(category)
		rec.Channel = domain.Channel(channel)
		rec.Outcome = domain.Outcome(outcome)
		out = append(out, rec)
	}
	return out, rows.Err()
}
