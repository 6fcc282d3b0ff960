package notify

import "time"

// DateLayout is the layout of local dates in the notification log.
const DateLayout = "2006-01-02"

// Calendar turns the wall clock into local calendar dates in the single
// configured timezone.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// NewCalendar creates a calendar for loc. A nil now uses time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Calendar{loc: loc, now: now}
}

// Now returns the current instant in the calendar's timezone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// Today returns local midnight of the current date.
func (c *Calendar) Today() time.Time {
	n := c.Now()
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, c.loc)
}

// Tomorrow returns local midnight of the next date, rolling over months
// and years.
func (c *Calendar) Tomorrow() time.Time { return c.Today().AddDate(0, 0, 1) }

// LocalDate returns today's date as YYYY-MM-DD.
func (c *Calendar) LocalDate() string { return c.Today().Format(DateLayout) }

// Location returns the calendar's timezone.
func (c *Calendar) Location() *time.Location { return c.loc }
