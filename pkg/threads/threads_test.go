package threads

import (
	"testing"

	"chatsync/pkg/models"
)

func TestAppendFindUpdate(t *testing.T) {
	s := New()
	scope := models.ScopeID("room1")
	s.Append(scope, &models.Message{ID: "a", Text: "one"})
	s.Append(scope, &models.Message{ID: "b", Text: "two"})

	if s.Len(scope) != 2 {
		t.Fatalf("len = %d", s.Len(scope))
	}
	ok := s.Update(scope, func(m *models.Message) bool { return m.ID == "b" }, func(m *models.Message) {
		m.Text = "edited"
	})
	if !ok {
		t.Fatalf("update missed")
	}
	got := s.Find(scope, func(m *models.Message) bool { return m.ID == "b" })
	if got == nil || got.Text != "edited" {
		t.Fatalf("find after update: %+v", got)
	}
}

func TestReplacePreservesPosition(t *testing.T) {
	s := New()
	scope := models.ScopeID("room1")
	s.Append(scope, &models.Message{ID: "a"})
	s.Append(scope, &models.Message{ID: "b"})
	s.Append(scope, &models.Message{ID: "c"})

	repl := &models.Message{ID: "b", Text: "restored"}
	if !s.Replace(scope, func(m *models.Message) bool { return m.ID == "b" }, repl) {
		t.Fatalf("replace missed")
	}
	live := s.List(scope)
	if live[1] != repl {
		t.Fatalf("replacement not in position: %+v", live[1])
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := New()
	scope := models.ScopeID("room1")
	s.Append(scope, &models.Message{ID: "a", Text: "one"})
	snap := s.Snapshot(scope)
	s.List(scope)[0].Text = "mutated"
	if snap[0].Text != "one" {
		t.Fatalf("snapshot shares storage with live record")
	}
}

func TestReplaceAllAndClear(t *testing.T) {
	s := New()
	scope := models.ScopeID("room1")
	s.Append(scope, &models.Message{ID: "old"})
	s.ReplaceAll(scope, []*models.Message{{ID: "h1"}, {ID: "h2"}})
	if s.Len(scope) != 2 || s.Last(scope).ID != "h2" {
		t.Fatalf("replace-all wrong: %d", s.Len(scope))
	}
	s.Clear(scope)
	if s.Len(scope) != 0 {
		t.Fatalf("clear left records")
	}
}
