package api

import (
	"context"
	"net/http"
	"time"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/graph"
)

// birthdayView is a person celebrating on a date, with the age they turn.
type birthdayView struct {
	domain.Person
	Age      *int `json:"age,omitempty"`
	InMemory bool `json:"in_memory"`
}

type birthdaysResponse struct {
	Date      string         `json:"date"`
	Birthdays []birthdayView `json:"birthdays"`
}

// TodayBirthdays handles GET /api/birthdays/today
func (h *Handlers) TodayBirthdays(w http.ResponseWriter, r *http.Request) {
	h.birthdays(w, r, h.selector.Calendar().Today(), h.selector.TodayBirthdays)
}

// TomorrowBirthdays handles GET /api/birthdays/tomorrow
func (h *Handlers) TomorrowBirthdays(w http.ResponseWriter, r *http.Request) {
	h.birthdays(w, r, h.selector.Calendar().Tomorrow(), h.selector.TomorrowBirthdays)
}

func (h *Handlers) birthdays(w http.ResponseWriter, r *http.Request, date time.Time, list func(context.Context) ([]domain.Person, error)) {
	persons, err := list(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	out := birthdaysResponse{Date: date.Format("2006-01-02"), Birthdays: make([]birthdayView, 0, len(persons))}
	for _, p := range persons {
		v := birthdayView{Person: p, InMemory: p.InMemory()}
		if age, ok := p.Age(date.Year()); ok {
			v.Age = &age
		}
		out.Birthdays = append(out.Birthdays, v)
	}
	respondData(w, http.StatusOK, out)
}

// GraphIssues handles GET /api/graph/issues. It reports dangling,
// self-referencing, cyclic and one-sided relationships.
func (h *Handlers) GraphIssues(w http.ResponseWriter, r *http.Request) {
	persons, err := h.registry.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	issues := graph.Build(persons).Validate()
	if issues == nil {
		issues = []graph.Issue{}
	}
	respondData(w, http.StatusOK, issues)
}
