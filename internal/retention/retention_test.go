package retention

import (
	"context"
	"testing"
	"time"

	"chatsync/pkg/journal"
	"chatsync/pkg/models"
)

func TestRunOnceCompactsOldTombstones(t *testing.T) {
	j, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	scope := models.ScopeID("room1")
	j.SaveMessage(scope, models.Message{ID: "live", Text: "hi", TS: 1})
	j.SaveMessage(scope, models.Message{ID: "old", Deleted: true, DeletedAt: time.Now().Add(-10 * 24 * time.Hour).UnixMilli(), TS: 2})

	if err := RunOnce(j, DefaultPeriod); err != nil {
		t.Fatalf("run: %v", err)
	}
	got, _ := j.LoadScope(scope)
	if len(got) != 1 || got[0].ID != "live" {
		t.Fatalf("survivors = %+v", got)
	}
}

func TestStartValidation(t *testing.T) {
	j, err := journal.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer j.Close()

	if _, err := Start(context.Background(), j, Options{Enabled: true, Cron: "not a cron"}); err == nil {
		t.Fatalf("bad cron accepted")
	}

	cancel, err := Start(context.Background(), nil, Options{Enabled: false})
	if err != nil {
		t.Fatalf("disabled start: %v", err)
	}
	cancel()

	cancel, err = Start(context.Background(), j, Options{Enabled: true})
	if err != nil {
		t.Fatalf("default cron rejected: %v", err)
	}
	cancel()
}
