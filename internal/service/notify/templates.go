package notify

import (
	"embed"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/familyhub/aniversaris/internal/domain"
)

//go:embed templates/*.liquid
var templateFS embed.FS

// Template names under templates/.
const (
	tplBirthdaySubject = "birthday_subject.liquid"
	tplBirthdayEmail   = "birthday_email.html.liquid"
	tplBirthdaySMS     = "birthday_sms.liquid"
	tplReminderSubject = "reminder_subject.liquid"
	tplReminderEmail   = "reminder_email.html.liquid"
	tplReminderSMS     = "reminder_sms.liquid"
)

var monthNames = [...]string{
	"Gener", "Febrer", "Març", "Abril", "Maig", "Juny",
	"Juliol", "Agost", "Setembre", "Octubre", "Novembre", "Desembre",
}

// MonthName returns the Catalan name of month (1-12).
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return monthNames[month-1]
}

// Greeting returns the salutation matching the gender marker.
func Greeting(g domain.Gender) string {
	switch g {
	case domain.GenderMale:
		return "Benvolgut"
	case domain.GenderFemale:
		return "Benvolguda"
	default:
		return "Benvolgut/da"
	}
}

// Message is a rendered notification.
type Message struct {
	Subject string
	HTML    string
	Text    string
}

// Renderer renders the notification texts with Liquid templates embedded
// in the binary. Parsed templates are cached by name.
type Renderer struct {
	engine     *liquid.Engine
	cache      sync.Map // map[string]*liquid.Template
	publicURL  string
	publicHost string
}

// NewRenderer creates a renderer. publicURL is linked in every message
// when set.
func NewRenderer(publicURL string) *Renderer {
	engine := liquid.NewEngine()

	// {{ month | month_name }}
	engine.RegisterFilter("month_name", func(m int) string { return MonthName(m) })
	// {{ gender | greeting }}
	engine.RegisterFilter("greeting", func(g string) string { return Greeting(domain.Gender(g)) })

	r := &Renderer{engine: engine, publicURL: publicURL}
	if u, err := url.Parse(publicURL); err == nil && u.Host != "" {
		r.publicHost = u.Host + strings.TrimSuffix(u.Path, "/")
	}
	return r
}

func (r *Renderer) render(name string, vars map[string]interface{}) (string, error) {
	var tpl *liquid.Template
	if cached, ok := r.cache.Load(name); ok {
		tpl = cached.(*liquid.Template)
	} else {
		src, err := templateFS.ReadFile("templates/" + name)
		if err != nil {
			return "", fmt.Errorf("read template %s: %w", name, err)
		}
		parsed, perr := r.engine.ParseString(string(src))
		if perr != nil {
			return "", fmt.Errorf("parse template %s: %w", name, perr)
		}
		r.cache.Store(name, parsed)
		tpl = parsed
	}

	out, err := tpl.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("render template %s: %w", name, err)
	}
	return strings.TrimSpace(out), nil
}

func (r *Renderer) baseVars() map[string]interface{} {
	return map[string]interface{}{
		"show_link":   r.publicHost != "",
		"public_url":  r.publicURL,
		"public_host": r.publicHost,
	}
}

// BirthdayEmail renders the congratulation email for p. A deceased person
// gets the remembrance variant.
func (r *Renderer) BirthdayEmail(p domain.Person) (Message, error) {
	vars := r.personVars(p)
	subject, err := r.render(tplBirthdaySubject, vars)
	if err != nil {
		return Message{}, err
	}
	body, err := r.render(tplBirthdayEmail, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: body}, nil
}

// BirthdaySMS renders the congratulation text message for p.
func (r *Renderer) BirthdaySMS(p domain.Person) (string, error) {
	return r.render(tplBirthdaySMS, r.personVars(p))
}

// ReminderEmail renders the eve-of-birthday email listing people. year is
// the year of the birthday, used for ages.
func (r *Renderer) ReminderEmail(people []domain.Person, year int) (Message, error) {
	vars := r.reminderVars(people, year)
	subject, err := r.render(tplReminderSubject, vars)
	if err != nil {
		return Message{}, err
	}
	body, err := r.render(tplReminderEmail, vars)
	if err != nil {
		return Message{}, err
	}
	return Message{Subject: subject, HTML: body}, nil
}

// ReminderSMS renders the eve-of-birthday text message.
func (r *Renderer) ReminderSMS(people []domain.Person, year int) (string, error) {
	return r.render(tplReminderSMS, r.reminderVars(people, year))
}

func (r *Renderer) personVars(p domain.Person) map[string]interface{} {
	vars := r.baseVars()
	vars["name"] = p.Name
	vars["gender"] = string(p.Gender)
	vars["day"] = p.Day
	vars["month"] = p.Month
	vars["in_memory"] = p.InMemory()
	return vars
}

func (r *Renderer) reminderVars(people []domain.Person, year int) map[string]interface{} {
	list := make([]map[string]interface{}, 0, len(people))
	for _, p := range people {
		age, ok := p.Age(year)
		list = append(list, map[string]interface{}{
			"name":      p.Name,
			"day":       p.Day,
			"month":     p.Month,
			"in_memory": p.InMemory(),
			"has_age":   ok,
			"age":       age,
		})
	}
	vars := r.baseVars()
	vars["people"] = list
	vars["count"] = len(people)
	return vars
}
