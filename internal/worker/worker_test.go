package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/ept-backend/internal/model"
)

func TestLatestSelections(t *testing.T) {
	attemptA := uuid.New()
	attemptB := uuid.New()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	batch := []model.AnswerAudit{
		{AttemptID: attemptA, ItemID: "q1", Option: 0, SelectedAt: t0},
		{AttemptID: attemptA, ItemID: "q2", Option: 1, SelectedAt: t0},
		{AttemptID: attemptA, ItemID: "q1", Option: 2, SelectedAt: t0.Add(time.Second)},
		{AttemptID: attemptB, ItemID: "q1", Option: 3, SelectedAt: t0},
		// An older selection delivered late must not win.
		{AttemptID: attemptA, ItemID: "q2", Option: 3, SelectedAt: t0.Add(-time.Second)},
	}

	got := latestSelections(batch)
	if len(got) != 3 {
		t.Fatalf("got %d selections, want 3", len(got))
	}

	want := []struct {
		attempt uuid.UUID
		item    string
		option  int
	}{
		{attemptA, "q1", 2},
		{attemptA, "q2", 1},
		{attemptB, "q1", 3},
	}
	for i, w := range want {
		if got[i].AttemptID != w.attempt || got[i].ItemID != w.item || got[i].Option != w.option {
			t.Errorf("selection %d = {%s %s %d}, want {%s %s %d}",
				i, got[i].AttemptID, got[i].ItemID, got[i].Option, w.attempt, w.item, w.option)
		}
	}
}

func TestLatestSelectionsEmpty(t *testing.T) {
	if got := latestSelections(nil); len(got) != 0 {
		t.Fatalf("expected no selections, got %d", len(got))
	}
}

func TestIntegrityRows(t *testing.T) {
	at := time.Now()
	batch := []model.IntegrityEvent{
		{AttemptID: uuid.New(), CandidateID: uuid.New(), Kind: model.IntegrityTabSwitch, Detail: "blur", OccurredAt: at},
		{AttemptID: uuid.New(), CandidateID: uuid.New(), Kind: "devtools_open", OccurredAt: at},
	}

	rows := integrityRows(batch)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	tests := []struct {
		kind   string
		detail string
	}{
		{"tab_switch", "blur"},
		{"other", ""},
	}
	for i, tt := range tests {
		if len(rows[i]) != 5 {
			t.Fatalf("row %d has %d columns, want 5", i, len(rows[i]))
		}
		if rows[i][2] != tt.kind {
			t.Errorf("row %d kind = %v, want %s", i, rows[i][2], tt.kind)
		}
		if rows[i][3] != tt.detail {
			t.Errorf("row %d detail = %v, want %q", i, rows[i][3], tt.detail)
		}
	}
}
