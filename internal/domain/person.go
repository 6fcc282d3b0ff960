package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Gender is the optional gender marker used to pick greetings.
type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = "unspecified"
)

// ParseGender accepts the canonical values as well as the legacy roster
// markers H (home) and D (dona). Anything else is unspecified.
func ParseGender(s string) Gender {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "h", "home", "m":
		return GenderMale
	case "female", "d", "dona", "f":
		return GenderFemale
	default:
		return GenderUnspecified
	}
}

// Person is a family member record. Relationship fields are weak
// references to other persons: no ownership and no cascade.
type Person struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Day                int       `json:"day"`
	Month              int       `json:"month"`
	BirthYear          *int      `json:"birth_year,omitempty"`
	Phone              string    `json:"phone,omitempty"`
	Email              string    `json:"email,omitempty"`
	Gender             Gender    `json:"gender"`
	Alive              bool      `json:"alive"`
	PhotoURL           string    `json:"photo_url,omitempty"`
	RelationshipStatus string    `json:"relationship_status,omitempty"`
	Birthplace         string    `json:"birthplace,omitempty"`
	DeathYear          *int      `json:"death_year,omitempty"`
	FatherID           *int64    `json:"father_id,omitempty"`
	MotherID           *int64    `json:"mother_id,omitempty"`
	PartnerID          *int64    `json:"partner_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Relations returns the three relationship pointers of the person.
func (p Person) Relations() Relations {
	return Relations{FatherID: p.FatherID, MotherID: p.MotherID, PartnerID: p.PartnerID}
}

// InMemory reports whether the person is deceased and should be rendered
// as a remembrance rather than a celebration.
func (p Person) InMemory() bool { return !p.Alive }

// Age returns year minus birth year when the birth year is known.
func (p Person) Age(year int) (int, bool) {
	if p.BirthYear == nil || *p.BirthYear <= 0 {
		return 0, false
	}
	return year - *p.BirthYear, true
}

// Normalize trims free-text fields and drops values that are only
// meaningful in combination with others.
func (p *Person) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Email = strings.TrimSpace(p.Email)
	p.Birthplace = strings.TrimSpace(p.Birthplace)
	p.RelationshipStatus = strings.TrimSpace(p.RelationshipStatus)
	if p.Gender == "" {
		p.Gender = GenderUnspecified
	}
	if p.Alive {
		p.DeathYear = nil
	}
}

// Validate checks required fields and the self-reference invariant.
func (p Person) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "name is required"}
	}
	if p.Month < 1 || p.Month > 12 {
		return &ValidationError{Field: "month", Message: "month must be between 1 and 12"}
	}
	if !ValidBirthday(p.Day, p.Month) {
		return &ValidationError{Field: "day", Message: fmt.Sprintf("day %d does not exist in month %d", p.Day, p.Month)}
	}
	if p.BirthYear != nil && *p.BirthYear < 0 {
		return &ValidationError{Field: "birth_year", Message: "birth year must be positive"}
	}
	if p.DeathYear != nil && p.BirthYear != nil && *p.DeathYear < *p.BirthYear {
		return &ValidationError{Field: "death_year", Message: "death year is before birth year"}
	}
	if p.ID != 0 {
		for field, ref := range map[string]*int64{"father_id": p.FatherID, "mother_id": p.MotherID, "partner_id": p.PartnerID} {
			if ref != nil && *ref == p.ID {
				return &ValidationError{Field: field, Message: "a person cannot reference themselves"}
			}
		}
	}
	return nil
}

// ValidBirthday reports whether day exists in month for some year, so
// 29 February is accepted.
func ValidBirthday(day, month int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	// 2000 is a leap year.
	last := time.Date(2000, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= last
}

// Relations groups the relationship pointers for partial updates.
type Relations struct {
	FatherID  *int64 `json:"father_id,omitempty"`
	MotherID  *int64 `json:"mother_id,omitempty"`
	PartnerID *int64 `json:"partner_id,omitempty"`
}

// Empty reports whether no relationship is set.
func (r Relations) Empty() bool {
	return r.FatherID == nil && r.MotherID == nil && r.PartnerID == nil
}

// PersonPatch carries the fields of an update. Nil means unchanged. For the
// relationship fields a pointer to 0 clears the reference.
type PersonPatch struct {
	Name               *string    `json:"name,omitempty"`
	Day                *int       `json:"day,omitempty"`
	Month              *int       `json:"month,omitempty"`
	BirthYear          *int       `json:"birth_year,omitempty"`
	Phone              *string    `json:"phone,omitempty"`
	Email              *string    `json:"email,omitempty"`
	Gender             *string    `json:"gender,omitempty"`
	Alive              *AliveFlag `json:"alive,omitempty"`
	PhotoURL           *string    `json:"photo_url,omitempty"`
	RelationshipStatus *string    `json:"relationship_status,omitempty"`
	Birthplace         *string    `json:"birthplace,omitempty"`
	DeathYear          *int       `json:"death_year,omitempty"`
	FatherID           *int64     `json:"father_id,omitempty"`
	MotherID           *int64     `json:"mother_id,omitempty"`
	PartnerID          *int64     `json:"partner_id,omitempty"`
}

// Apply writes the patch onto p and reports whether the identity fields
// used for duplicate screening changed.
func (pp PersonPatch) Apply(p *Person) (identityChanged bool) {
	if pp.Name != nil && strings.TrimSpace(*pp.Name) != p.Name {
		p.Name = strings.TrimSpace(*pp.Name)
		identityChanged = true
	}
	if pp.Day != nil && *pp.Day != p.Day {
		p.Day = *pp.Day
		identityChanged = true
	}
	if pp.Month != nil && *pp.Month != p.Month {
		p.Month = *pp.Month
		identityChanged = true
	}
	if pp.BirthYear != nil {
		p.BirthYear = zeroToNil(*pp.BirthYear)
	}
	if pp.Phone != nil {
		p.Phone = *pp.Phone
	}
	if pp.Email != nil {
		p.Email = *pp.Email
	}
	if pp.Gender != nil {
		p.Gender = ParseGender(*pp.Gender)
	}
	if pp.Alive != nil {
		p.Alive = bool(*pp.Alive)
	}
	if pp.PhotoURL != nil {
		p.PhotoURL = *pp.PhotoURL
	}
	if pp.RelationshipStatus != nil {
		p.RelationshipStatus = *pp.RelationshipStatus
	}
	if pp.Birthplace != nil {
		p.Birthplace = *pp.Birthplace
	}
	if pp.DeathYear != nil {
		p.DeathYear = zeroToNil(*pp.DeathYear)
	}
	if pp.FatherID != nil {
		p.FatherID = zeroIDToNil(*pp.FatherID)
	}
	if pp.MotherID != nil {
		p.MotherID = zeroIDToNil(*pp.MotherID)
	}
	if pp.PartnerID != nil {
		p.PartnerID = zeroIDToNil(*pp.PartnerID)
	}
	return identityChanged
}

func zeroToNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func zeroIDToNil(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}

// AliveFlag decodes the roster's "alive" column, which arrives as a JSON
// boolean or as free text. Only an explicit negative means deceased; an
// empty value means alive.
type AliveFlag bool

// ParseAlive interprets the textual forms of the alive flag.
func ParseAlive(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "no", "false", "0", "n":
		return false
	default:
		return true
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *AliveFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*a = AliveFlag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("alive: expected boolean or string, got %s", string(data))
	}
	*a = AliveFlag(ParseAlive(s))
	return nil
}
