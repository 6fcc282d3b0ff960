package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/familyhub/aniversaris/internal/domain"
)

// Selector picks the persons to notify.
type Selector struct {
	persons PersonSource
	cal     *Calendar
}

// NewSelector creates a selector.
func NewSelector(persons PersonSource, cal *Calendar) *Selector {
	return &Selector{persons: persons, cal: cal}
}

// Calendar returns the selector's calendar.
func (s *Selector) Calendar() *Calendar { return s.cal }

// TodayBirthdays returns everyone born on today's day and month, deceased
// persons included.
func (s *Selector) TodayBirthdays(ctx context.Context) ([]domain.Person, error) {
	return s.On(ctx, s.cal.Today())
}

// TomorrowBirthdays is TodayBirthdays for the next calendar date. 29
// February only comes up when tomorrow really is 29 February.
func (s *Selector) TomorrowBirthdays(ctx context.Context) ([]domain.Person, error) {
	return s.On(ctx, s.cal.Tomorrow())
}

// On returns everyone born on the day and month of date.
func (s *Selector) On(ctx context.Context, date time.Time) ([]domain.Person, error) {
	persons, err := s.persons.ListByBirthday(ctx, date.Day(), int(date.Month()))
	if err != nil {
		return nil, domain.Upstream(fmt.Sprintf("birthdays on %s", date.Format(DateLayout)), err)
	}
	return persons, nil
}

// ActiveMembers returns living persons with an email or a phone.
func (s *Selector) ActiveMembers(ctx context.Context) ([]domain.Person, error) {
	persons, err := s.persons.ListActive(ctx)
	if err != nil {
		return nil, domain.Upstream("active members", err)
	}
	return persons, nil
}
