package reminder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a reminder ID does not exist.
var ErrNotFound = errors.New("reminder not found")

// Reminder is one stored reminder. Field names match the JSON shape the
// tools return.
type Reminder struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Due         time.Time  `json:"datetime"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// HoursUntil/HoursOverdue are computed for upcoming/overdue queries
	// and zero elsewhere.
	HoursUntil   float64 `json:"hours_until,omitempty"`
	HoursOverdue float64 `json:"hours_overdue,omitempty"`
}

// Stats summarizes the store.
type Stats struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	Pending     int `json:"pending"`
	Overdue     int `json:"overdue"`
	Upcoming24h int `json:"upcoming_24h"`
}

// Store is an in-memory reminder collection. Nothing is persisted; the
// store lives and dies with the process.
type Store struct {
	mu        sync.Mutex
	reminders map[string]Reminder

	// now is replaceable for tests.
	now func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		reminders: make(map[string]Reminder),
		now:       time.Now,
	}
}

// Add creates a reminder. Reminders for past times are rejected.
func (s *Store) Add(title, description string, due time.Time) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if due.Before(s.now()) {
		return Reminder{}, errors.New("cannot create reminder for past time")
	}

	r := Reminder{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Due:         due,
		CreatedAt:   s.now(),
	}
	s.reminders[r.ID] = r
	return r, nil
}

// List returns reminders sorted by due time, skipping completed ones
// unless includeCompleted is set.
func (s *Store) List(includeCompleted bool) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Reminder
	for _, r := range s.reminders {
		if includeCompleted || !r.Completed {
			out = append(out, r)
		}
	}
	sortByDue(out)
	return out
}

// Upcoming returns pending reminders due within the window from now, each
// annotated with the hours remaining.
func (s *Store) Upcoming(window time.Duration) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	horizon := now.Add(window)
	var out []Reminder
	for _, r := range s.reminders {
		if r.Completed || r.Due.Before(now) || r.Due.After(horizon) {
			continue
		}
		r.HoursUntil = roundHours(r.Due.Sub(now))
		out = append(out, r)
	}
	sortByDue(out)
	return out
}

// Overdue returns pending reminders whose due time has passed, each
// annotated with the hours elapsed.
func (s *Store) Overdue() []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var out []Reminder
	for _, r := range s.reminders {
		if r.Completed || !r.Due.Before(now) {
			continue
		}
		r.HoursOverdue = roundHours(now.Sub(r.Due))
		out = append(out, r)
	}
	sortByDue(out)
	return out
}

// Complete marks a reminder as done.
func (s *Store) Complete(id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	now := s.now()
	r.Completed = true
	r.CompletedAt = &now
	s.reminders[id] = r
	return r, nil
}

// Delete removes a reminder and returns it.
func (s *Store) Delete(id string) (Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reminders[id]
	if !ok {
		return Reminder{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.reminders, id)
	return r, nil
}

// Search returns reminders whose title or description contains query,
// case-insensitively, sorted by due time.
func (s *Store) Search(query string) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := strings.ToLower(query)
	var out []Reminder
	for _, r := range s.reminders {
		if strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Description), q) {
			out = append(out, r)
		}
	}
	sortByDue(out)
	return out
}

// Stats summarizes the store's contents.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	st := Stats{Total: len(s.reminders)}
	for _, r := range s.reminders {
		if r.Completed {
			st.Completed++
			continue
		}
		st.Pending++
		if r.Due.Before(now) {
			st.Overdue++
		} else if !r.Due.After(now.Add(24 * time.Hour)) {
			st.Upcoming24h++
		}
	}
	return st
}

func sortByDue(rs []Reminder) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].Due.Before(rs[j].Due) })
}

func roundHours(d time.Duration) float64 {
	h := d.Hours()
	return float64(int(h*10+0.5)) / 10
}
