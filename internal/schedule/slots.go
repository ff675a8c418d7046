package schedule

import (
	"fmt"
	"time"
)

const (
	slotLabelLayout = "03:04 PM"
	dateLayout      = "2006-01-02"
)

// SlotTemplate is the canonical list of bookable time-of-day values for one
// clinic day, in chronological order.
type SlotTemplate struct {
	labels []string
	index  map[string]int
}

// NewSlotTemplate builds the template from morning and afternoon windows
// ("HH:MM", 24h) divided into interval-sized slots. Window ends are
// exclusive: a 09:00-12:00 window with 30-minute slots yields 09:00 AM
// through 11:30 AM.
func NewSlotTemplate(morningOpen, morningClose, afternoonOpen, afternoonClose string, slotMinutes int) (*SlotTemplate, error) {
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("slot interval must be positive, got %d minutes", slotMinutes)
	}

	interval := time.Duration(slotMinutes) * time.Minute

	morning, err := enumerateWindow(morningOpen, morningClose, interval)
	if err != nil {
		return nil, fmt.Errorf("morning window: %w", err)
	}
	afternoon, err := enumerateWindow(afternoonOpen, afternoonClose, interval)
	if err != nil {
		return nil, fmt.Errorf("afternoon window: %w", err)
	}

	labels := append(morning, afternoon...)
	if len(labels) == 0 {
		return nil, fmt.Errorf("slot template is empty")
	}

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		if _, dup := index[l]; dup {
			return nil, fmt.Errorf("duplicate slot %q, windows overlap", l)
		}
		index[l] = i
	}

	return &SlotTemplate{labels: labels, index: index}, nil
}

func enumerateWindow(open, close string, interval time.Duration) ([]string, error) {
	start, err := time.Parse("15:04", open)
	if err != nil {
		return nil, fmt.Errorf("parse open %q: %w", open, err)
	}
	end, err := time.Parse("15:04", close)
	if err != nil {
		return nil, fmt.Errorf("parse close %q: %w", close, err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("window %s-%s is empty", open, close)
	}

	var labels []string
	for t := start; t.Before(end); t = t.Add(interval) {
		labels = append(labels, t.Format(slotLabelLayout))
	}
	return labels, nil
}

// Labels returns the full template in chronological order.
func (t *SlotTemplate) Labels() []string {
	out := make([]string, len(t.labels))
	copy(out, t.labels)
	return out
}

// Contains reports whether label is a valid slot for the clinic day.
func (t *SlotTemplate) Contains(label string) bool {
	_, ok := t.index[label]
	return ok
}

func (t *SlotTemplate) Len() int {
	return len(t.labels)
}

// Subtract returns the template minus the given labels, preserving
// chronological order. Unknown labels in taken are ignored.
func (t *SlotTemplate) Subtract(taken []string) []string {
	used := make(map[string]bool, len(taken))
	for _, l := range taken {
		used[l] = true
	}

	free := make([]string, 0, len(t.labels))
	for _, l := range t.labels {
		if !used[l] {
			free = append(free, l)
		}
	}
	return free
}

// ParseDate parses an ISO calendar date into midnight UTC.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
	}
	return d, nil
}

// Age computes whole years between dateOfBirth and on, the way a clinic
// receptionist would: birthdays that have not happened yet this year do not
// count.
func Age(dateOfBirth, on time.Time) int {
	years := on.Year() - dateOfBirth.Year()
	anniversary := dateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(on) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
