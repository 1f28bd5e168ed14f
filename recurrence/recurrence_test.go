package recurrence

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentdav/bridge/ical"
)

func TestExpandDropsCancelledOccurrence(t *testing.T) {
	master := &ical.Event{
		UID:     "series-1",
		Summary: "Standup",
		Start:   time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 1, 26, 9, 30, 0, 0, time.UTC),
		RRule:   "FREQ=WEEKLY;COUNT=4",
	}
	cancelledAt := time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)
	override := &ical.Event{
		UID:          "series-1",
		RecurrenceID: &cancelledAt,
		Status:       ical.StatusCancelled,
	}

	windowStart := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	occs, err := Expand(master, []*ical.Event{override}, windowStart, windowEnd, zerolog.Nop())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
	want := []time.Time{
		time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 9, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 16, 9, 0, 0, 0, time.UTC),
	}
	for i, w := range want {
		if !occs[i].Start.Equal(w) {
			t.Fatalf("occurrence %d: expected %v, got %v", i, w, occs[i].Start)
		}
	}
}

func TestExpandSuppressesExdateOccurrence(t *testing.T) {
	master := &ical.Event{
		UID:     "series-3",
		Summary: "Standup",
		Start:   time.Date(2026, 1, 26, 9, 0, 0, 0, time.UTC),
		End:     time.Date(2026, 1, 26, 9, 30, 0, 0, time.UTC),
		RRule:   "FREQ=WEEKLY;COUNT=4",
		ExDates: []time.Time{time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)},
	}

	windowStart := time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)
	windowEnd := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	occs, err := Expand(master, nil, windowStart, windowEnd, zerolog.Nop())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences (one excluded by EXDATE), got %d", len(occs))
	}
	for _, occ := range occs {
		if occ.Start.Equal(time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected 2026-02-02 occurrence to be suppressed by EXDATE, found %+v", occ)
		}
	}
}

func TestExpandReplacesOverriddenOccurrence(t *testing.T) {
	master := &ical.Event{
		UID: "series-2", Summary: "Weekly sync",
		Start: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC),
		RRule: "FREQ=WEEKLY;COUNT=3",
	}
	movedAt := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	override := &ical.Event{
		UID: "series-2", Summary: "Weekly sync (moved)",
		Start: time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC),
		RecurrenceID: &movedAt,
		Status:       ical.StatusConfirmed,
	}

	occs, err := Expand(master, []*ical.Event{override},
		time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), zerolog.Nop())
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(occs) != 3 {
		t.Fatalf("expected 3 occurrences, got %d", len(occs))
	}
	if occs[1].Summary != "Weekly sync (moved)" || occs[1].Start.Hour() != 14 {
		t.Fatalf("expected overridden occurrence at index 1, got %+v", occs[1])
	}
}
