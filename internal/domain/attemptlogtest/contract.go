// Package attemptlogtest provides contract tests for [domain.AttemptLog]
// implementations.
package attemptlogtest

import (
	"context"
	"testing"
	"time"

	"github.com/slotshift/slotshift/internal/domain"
)

// Factory creates a fresh [domain.AttemptLog] for each test.
type Factory func(t *testing.T) domain.AttemptLog

// Run exercises the [domain.AttemptLog] contract.
func Run(t *testing.T, factory Factory) {
	started := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	record := func(id string, outcome domain.Outcome, offset time.Duration) domain.AttemptRecord {
		return domain.AttemptRecord{
			ID:         id,
			Source:     domain.SlotA,
			Target:     domain.SlotB,
			ReleaseID:  "20260830120000",
			Outcome:    outcome,
			StartedAt:  started.Add(offset),
			FinishedAt: started.Add(offset + time.Minute),
		}
	}

	t.Run("AppendAndRecent", func(t *testing.T) {
		log := factory(t)
		ctx := context.Background()

		if err := log.Append(ctx, record("a1", domain.OutcomeSuccess, 0)); err != nil {
			t.Fatalf("Append: %v", err)
		}

		got, err := log.Recent(ctx, 10)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("Recent: got %d records, want 1", len(got))
		}
		rec := got[0]
		if rec.ID != "a1" || rec.Outcome != domain.OutcomeSuccess || rec.Target != domain.SlotB {
			t.Errorf("record = %+v", rec)
		}
		if !rec.StartedAt.Equal(started) {
			t.Errorf("StartedAt = %v, want %v", rec.StartedAt, started)
		}
	})

	t.Run("RecentOrdersNewestFirst", func(t *testing.T) {
		log := factory(t)
		ctx := context.Background()

		for i, id := range []string{"a1", "a2", "a3"} {
			if err := log.Append(ctx, record(id, domain.OutcomeSuccess, time.Duration(i)*time.Hour)); err != nil {
				t.Fatalf("Append %s: %v", id, err)
			}
		}

		got, err := log.Recent(ctx, 2)
		if err != nil {
			t.Fatalf("Recent: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("Recent: got %d records, want 2", len(got))
		}
		if got[0].ID != "a3" || got[1].ID != "a2" {
			t.Errorf("order = [%s %s], want [a3 a2]", got[0].ID, got[1].ID)
		}
	})

	t.Run("RecordsFailureError", func(t *testing.T) {
		log := factory(t)
		ctx := context.Background()

		rec := record("a1", domain.OutcomeHealthFailed, 0)
		rec.Error = "health gate failed: slot b not healthy after 10 attempts"
		if err := log.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}

		got, _ := log.Recent(ctx, 1)
		if len(got) != 1 || got[0].Error == "" {
			t.Fatalf("failure error must round-trip, got %+v", got)
		}
	})

	t.Run("TrimKeepsMostRecent", func(t *testing.T) {
		log := factory(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			id := string(rune('a'+i)) + "1"
			if err := log.Append(ctx, record(id, domain.OutcomeSuccess, time.Duration(i)*time.Hour)); err != nil {
				t.Fatalf("Append: %v", err)
			}
		}

		removed, err := log.Trim(ctx, 2)
		if err != nil {
			t.Fatalf("Trim: %v", err)
		}
		if removed != 3 {
			t.Errorf("Trim removed %d, want 3", removed)
		}

		got, _ := log.Recent(ctx, 10)
		if len(got) != 2 {
			t.Fatalf("after trim: %d records, want 2", len(got))
		}
		if got[0].ID != "e1" || got[1].ID != "d1" {
			t.Errorf("survivors = [%s %s], want [e1 d1]", got[0].ID, got[1].ID)
		}
	})

	t.Run("TrimOnEmptyLog", func(t *testing.T) {
		log := factory(t)
		removed, err := log.Trim(context.Background(), 3)
		if err != nil {
			t.Fatalf("Trim: %v", err)
		}
		if removed != 0 {
			t.Errorf("Trim removed %d, want 0", removed)
		}
	})
}
