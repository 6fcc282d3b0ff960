package domain

import (
	"fmt"
	"time"
)

// Category is the reason a notification is sent.
type Category string

const (
	CategoryBirthday Category = "BIRTHDAY"
	CategoryReminder Category = "REMINDER"
)

// Channel is the transport a notification goes through.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Outcome is the recorded result of one send attempt.
type Outcome string

const (
	OutcomeSuccess     Outcome = "SUCCESS"
	OutcomeFailed      Outcome = "FAILED"
	OutcomeNoBirthdays Outcome = "NO_BIRTHDAYS"
	OutcomeSkipped     Outcome = "SKIPPED"
)

// Attempted reports whether the outcome counts as a delivery attempt for
// the once-per-day rule. Failed attempts count.
func (o Outcome) Attempted() bool {
	return o == OutcomeSuccess || o == OutcomeFailed
}

// SystemRecipient is the recipient key of log entries not tied to a person.
const SystemRecipient = "system"

// PersonRecipient returns the stable recipient key for a person.
func PersonRecipient(id int64) string {
	return fmt.Sprintf("person:%d", id)
}

// NotificationRecord is one entry of the append-only notification log.
// LocalDate is the calendar date (YYYY-MM-DD) of the attempt in the
// system timezone and is what the daily dedup rule is evaluated against.
type NotificationRecord struct {
	ID            int64     `json:"id"`
	PersonID      *int64    `json:"person_id,omitempty"`
	RecipientKey  string    `json:"recipient_key"`
	RecipientName string    `json:"recipient_name"`
	Address       string    `json:"address,omitempty"`
	Category      Category  `json:"category"`
	Channel       Channel   `json:"channel"`
	Outcome       Outcome   `json:"outcome"`
	ProviderID    string    `json:"provider_id,omitempty"`
	Error         string    `json:"error,omitempty"`
	LocalDate     string    `json:"local_date"`
	CreatedAt     time.Time `json:"created_at"`
}

// SendResult is returned by a channel transport after one attempt.
type SendResult struct {
	Success    bool   `json:"success"`
	ProviderID string `json:"provider_id,omitempty"`
	Error      string `json:"error,omitempty"`
}
