package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"commentreview/internal/domain"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "commentreview-test.db")
	db, err := InitDB(dbPath)
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunLifecycle(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	first := domain.Run{ID: "run-1", Kind: domain.RunKindProcess, Input: "in.xlsx", Fingerprint: "fp-1", Status: domain.RunStatusRunning, StartedAt: base}
	second := domain.Run{ID: "run-2", Kind: domain.RunKindCluster, Input: "out.xlsx", Status: domain.RunStatusRunning, StartedAt: base.Add(time.Minute)}
	for _, r := range []domain.Run{first, second} {
		if err := InsertRun(db, r); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	exists, err := CompletedRunExists(db, "fp-1")
	if err != nil || exists {
		t.Fatalf("running run must not count as completed: exists=%v err=%v", exists, err)
	}

	first.Output = "out_01022024_0304PM.xlsx"
	first.Rows = 10
	first.FailedRows = 2
	first.Status = domain.RunStatusCompleted
	first.FinishedAt = base.Add(30 * time.Second)
	if err := FinishRun(db, first); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	exists, err = CompletedRunExists(db, "fp-1")
	if err != nil || !exists {
		t.Fatalf("expected completed run for fp-1: exists=%v err=%v", exists, err)
	}

	runs, err := ListRuns(db, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-2" {
		t.Fatalf("expected newest run first, got %s", runs[0].ID)
	}
	got := runs[1]
	if got.Rows != 10 || got.FailedRows != 2 || got.Output != first.Output || got.FinishedAt.IsZero() {
		t.Fatalf("unexpected finished run: %+v", got)
	}
	if !runs[0].FinishedAt.IsZero() {
		t.Fatalf("unfinished run should have zero FinishedAt, got %s", runs[0].FinishedAt)
	}
}

func TestFinishRunUnknownID(t *testing.T) {
	db := newTestDB(t)
	if err := FinishRun(db, domain.Run{ID: "missing", FinishedAt: time.Now()}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestResponseCache(t *testing.T) {
	db := newTestDB(t)
	cache := ResponseCache{DB: db}
	ctx := context.Background()

	if _, ok, err := cache.GetResponse(ctx, "k"); err != nil || ok {
		t.Fatalf("empty cache returned ok=%v err=%v", ok, err)
	}
	if err := cache.PutResponse(ctx, "k", `{"a":1}`); err != nil {
		t.Fatalf("PutResponse failed: %v", err)
	}
	if err := cache.PutResponse(ctx, "k", `{"a":2}`); err != nil {
		t.Fatalf("PutResponse overwrite failed: %v", err)
	}
	reply, ok, err := cache.GetResponse(ctx, "k")
	if err != nil || !ok || reply != `{"a":2}` {
		t.Fatalf("GetResponse = %q %v %v", reply, ok, err)
	}
}
