package views

import (
	"strings"
	"time"

	"homehelper/internal/models"

	"github.com/jinzhu/now"
)

// Field selects which record attribute a search term is matched against.
type Field string

const (
	FieldCustomer Field = "customer"
	FieldProvider Field = "provider"
	FieldService  Field = "service"
	FieldLocation Field = "location"
	FieldID       Field = "id"
	// FieldAny is the only selector that matches across several fields.
	FieldAny Field = "any"
)

// Criteria narrows a list. Zero values disable the corresponding filter.
type Criteria struct {
	Term     string
	Field    Field
	Day      *time.Time
	Status   models.Status
	Location *time.Location
}

func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Term) == "" && c.Day == nil && c.Status == ""
}

// Filter returns the records matching every active criterion, in input order.
func Filter(records []models.BookingRecord, c Criteria) []models.BookingRecord {
	term := strings.ToLower(strings.TrimSpace(c.Term))
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}

	out := make([]models.BookingRecord, 0, len(records))
	for i := range records {
		rec := &records[i]
		if c.Status != "" && rec.Status != c.Status {
			continue
		}
		if term != "" && !MatchesTerm(rec, term, c.Field) {
			continue
		}
		if c.Day != nil && !SameDay(rec.RequestedDateTime, *c.Day, loc) {
			continue
		}
		out = append(out, *rec)
	}
	return out
}

// MatchesTerm checks an already lower-cased term against the selected field.
// Unknown selectors behave like FieldCustomer.
func MatchesTerm(rec *models.BookingRecord, term string, field Field) bool {
	if term == "" {
		return true
	}
	contains := func(s string) bool {
		return strings.Contains(strings.ToLower(s), term)
	}

	switch field {
	case FieldProvider:
		return contains(rec.ProviderName())
	case FieldService:
		return contains(rec.ServiceName)
	case FieldLocation:
		return contains(rec.ServiceAddress)
	case FieldID:
		return contains(rec.ID)
	case FieldAny:
		return contains(rec.CustomerName()) || contains(rec.ProviderName()) ||
			contains(rec.ServiceName) || contains(rec.ServiceAddress) || contains(rec.ID)
	default:
		return contains(rec.CustomerName())
	}
}

// SameDay compares calendar days in loc, ignoring time of day. A missing
// timestamp never matches.
func SameDay(t *time.Time, day time.Time, loc *time.Location) bool {
	if t == nil {
		return false
	}
	cfg := &now.Config{TimeLocation: loc}
	a := cfg.With(t.In(loc)).BeginningOfDay()
	b := cfg.With(day.In(loc)).BeginningOfDay()
	return a.Equal(b)
}

// ParseDay parses a YYYY-MM-DD filter value in loc.
func ParseDay(s string, loc *time.Location) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
