package journalnotes

import (
	"context"
	"testing"
	"time"

	"github.com/tradevault/platform/internal/app/domain/journal"
	"github.com/tradevault/platform/internal/app/storage/memory"
)

func TestCreateTruncatesDay(t *testing.T) {
	svc := New(memory.New(), nil)

	note, err := svc.Create(context.Background(), journal.Note{
		AccountID: "acct-1",
		Title:     "Overtraded the open",
		Body:      "Took three impulse entries before 10am.",
		Day:       time.Date(2026, 3, 5, 16, 45, 0, 0, time.FixedZone("EST", -5*3600)),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	want := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	if !note.Day.Equal(want) {
		t.Fatalf("expected day %s, got %s", want, note.Day)
	}
}

func TestListByRange(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		_, err := svc.Create(ctx, journal.Note{
			AccountID: "acct-1",
			Title:     "entry",
			Day:       time.Date(2026, 3, day, 12, 0, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	notes, err := svc.List(ctx,
		"acct-1",
		time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(notes))
	}
}

func TestUpdateValidation(t *testing.T) {
	svc := New(memory.New(), nil)
	ctx := context.Background()

	note, err := svc.Create(ctx, journal.Note{AccountID: "acct-1", Title: "first", Day: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	empty := "  "
	if _, err := svc.Update(ctx, note.ID, &empty, nil, nil, nil, nil); err == nil {
		t.Fatal("expected empty title to be rejected")
	}

	mood := "focused"
	updated, err := svc.Update(ctx, note.ID, nil, nil, &mood, nil, nil)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Mood != "focused" {
		t.Fatalf("expected mood to be set, got %q", updated.Mood)
	}
}
