package journalnotes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tradevault/platform/internal/app/domain/journal"
	"github.com/tradevault/platform/internal/app/storage"
	"github.com/tradevault/platform/pkg/logger"
)

// Service manages dated journal notes.
type Service struct {
	store storage.NoteStore
	log   *logger.Logger
}

// New constructs a journal notes service.
func New(store storage.NoteStore, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("journal")
	}
	return &Service{store: store, log: log}
}

// Create records a note for a day. The day is truncated to UTC midnight so
// one calendar cell maps to one bucket.
func (s *Service) Create(ctx context.Context, n journal.Note) (journal.Note, error) {
	n.Title = strings.TrimSpace(n.Title)
	n.Mood = strings.TrimSpace(n.Mood)

	if strings.TrimSpace(n.AccountID) == "" {
		return journal.Note{}, fmt.Errorf("account_id is required")
	}
	if n.Title == "" {
		return journal.Note{}, fmt.Errorf("title is required")
	}
	if n.Day.IsZero() {
		return journal.Note{}, fmt.Errorf("day is required")
	}
	n.Day = truncateDay(n.Day)

	return s.store.CreateNote(ctx, n)
}

// Update applies non-nil fields to an existing note.
func (s *Service) Update(ctx context.Context, id string, title, body, mood *string, day *time.Time, tags *[]string) (journal.Note, error) {
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return journal.Note{}, err
	}

	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return journal.Note{}, fmt.Errorf("title cannot be empty")
		}
		n.Title = trimmed
	}
	if body != nil {
		n.Body = *body
	}
	if mood != nil {
		n.Mood = strings.TrimSpace(*mood)
	}
	if day != nil {
		if day.IsZero() {
			return journal.Note{}, fmt.Errorf("day cannot be zero")
		}
		n.Day = truncateDay(*day)
	}
	if tags != nil {
		n.Tags = *tags
	}

	return s.store.UpdateNote(ctx, n)
}

// Get returns one note.
func (s *Service) Get(ctx context.Context, id string) (journal.Note, error) {
	return s.store.GetNote(ctx, id)
}

// List returns an account's notes within the optional day range.
func (s *Service) List(ctx context.Context, accountID string, from, to time.Time) ([]journal.Note, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, fmt.Errorf("account_id is required")
	}
	if !from.IsZero() {
		from = truncateDay(from)
	}
	if !to.IsZero() {
		to = truncateDay(to)
	}
	return s.store.ListNotes(ctx, accountID, from, to)
}

// Delete removes a note.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteNote(ctx, id)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
