package ledger

import (
	"testing"

	"chatsync/pkg/models"
)

func TestCaptureFirstWriterWins(t *testing.T) {
	l := New()
	k := Key{Kind: OpEdit, Ref: "m1"}

	if !l.Capture(k, "room1", models.Message{ID: "m1", Text: "original"}) {
		t.Fatalf("first capture refused")
	}
	if l.Capture(k, "room1", models.Message{ID: "m1", Text: "already-edited"}) {
		t.Fatalf("second capture overwrote snapshot")
	}

	e, ok := l.Take(k)
	if !ok || e.Snapshot.Text != "original" {
		t.Fatalf("snapshot lost: %+v ok=%v", e, ok)
	}
}

func TestTakeResolvesOnce(t *testing.T) {
	l := New()
	k := Key{Kind: OpDelete, Ref: "m1"}
	l.Capture(k, "room1", models.Message{ID: "m1"})

	if _, ok := l.Take(k); !ok {
		t.Fatalf("first take missed")
	}
	if _, ok := l.Take(k); ok {
		t.Fatalf("entry resolved twice")
	}
	if l.Len() != 0 {
		t.Fatalf("ledger not empty: %d", l.Len())
	}
}

func TestRecordRef(t *testing.T) {
	if got := RecordRef("srv-1", "ana", 10); got != "srv-1" {
		t.Fatalf("server id not preferred: %s", got)
	}
	if got := RecordRef("", "ana", 10); got != "ana|10" {
		t.Fatalf("composite ref wrong: %s", got)
	}
}

func TestKeysAreIndependentPerKind(t *testing.T) {
	l := New()
	l.Capture(Key{Kind: OpEdit, Ref: "m1"}, "room1", models.Message{Text: "a"})
	l.Capture(Key{Kind: OpDelete, Ref: "m1"}, "room1", models.Message{Text: "b"})
	if l.Len() != 2 {
		t.Fatalf("kinds collided: %d", l.Len())
	}
}
