package repo_test

import (
	"context"
	"errors"
	"testing"

	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/migrate"
	"caseline/internal/repo"
)

func newTestRepo(t *testing.T) (repo.Repo, context.Context) {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo.Repo{DB: conn}, context.Background()
}

func sampleCase(id, status string) domain.Case {
	return domain.Case{
		ID:              id,
		ClientID:        "client-1",
		ClientCategory:  domain.ClientCorporate,
		Priority:        domain.PriorityMedium,
		RiskRating:      domain.RiskHigh,
		Status:          domain.Status(status),
		CreatedAt:       "2026-03-01T09:00:00Z",
		StatusChangedAt: "2026-03-01T09:00:00Z",
		Version:         1,
	}
}

func TestCaseRoundTrip(t *testing.T) {
	r, ctx := newTestRepo(t)
	c := sampleCase("c-1", "assigned")
	c.Assignee = "ana-1"
	c.ReviewReasons = []string{"Risk drivers > 10", "TRMS referral"}
	c.EscalationPending = true
	c.PendingManagerID = "mgr-1"
	if err := r.InsertCase(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := r.GetCase(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Assignee != "ana-1" || !got.EscalationPending || got.PendingManagerID != "mgr-1" {
		t.Fatalf("round trip lost fields: %+v", got)
	}
	if len(got.ReviewReasons) != 2 {
		t.Fatalf("review reasons: %v", got.ReviewReasons)
	}
	if got.CompletedAt != nil {
		t.Fatalf("completed_at should be nil, got %v", *got.CompletedAt)
	}
}

func TestGetCaseNotFound(t *testing.T) {
	r, ctx := newTestRepo(t)
	_, err := r.GetCase(ctx, "nope")
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCaseVersionedMismatch(t *testing.T) {
	r, ctx := newTestRepo(t)
	c := sampleCase("c-1", "assigned")
	if err := r.InsertCase(ctx, c); err != nil {
		t.Fatalf("insert: %v", err)
	}
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	c.Status = domain.StatusInProgress
	if err := r.UpdateCaseVersioned(ctx, tx, c, 99); !errors.Is(err, repo.ErrVersionMismatch) {
		t.Fatalf("stale version: %v", err)
	}
	if err := r.UpdateCaseVersioned(ctx, tx, c, 1); err != nil {
		t.Fatalf("matching version: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := r.GetCase(ctx, "c-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Version != 2 || got.Status != domain.StatusInProgress {
		t.Fatalf("after update: version=%d status=%s", got.Version, got.Status)
	}
}

func TestNextUnassignedCaseOrdering(t *testing.T) {
	r, ctx := newTestRepo(t)

	older := sampleCase("c-old", "unassigned")
	older.CreatedAt = "2026-03-01T09:00:00Z"
	newer := sampleCase("c-new", "unassigned")
	newer.CreatedAt = "2026-03-02T09:00:00Z"
	critical := sampleCase("c-crit", "unassigned")
	critical.CreatedAt = "2026-03-03T09:00:00Z"
	critical.Priority = domain.PriorityCritical
	assigned := sampleCase("c-taken", "assigned")

	for _, c := range []domain.Case{older, newer, critical, assigned} {
		if err := r.InsertCase(ctx, c); err != nil {
			t.Fatalf("insert %s: %v", c.ID, err)
		}
	}

	// priority first, then FIFO within a priority
	got, err := r.NextUnassignedCase(ctx, "")
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if got.ID != "c-crit" {
		t.Fatalf("next case: %s", got.ID)
	}
}

func TestListCasesFilters(t *testing.T) {
	r, ctx := newTestRepo(t)
	a := sampleCase("c-a", "assigned")
	a.Assignee = "ana-1"
	a.LOB = "banking"
	b := sampleCase("c-b", "in-progress")
	b.Assignee = "ana-2"
	for _, c := range []domain.Case{a, b} {
		if err := r.InsertCase(ctx, c); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := r.ListCases(ctx, repo.CaseFilters{Assignee: "ana-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c-a" {
		t.Fatalf("assignee filter: %+v", got)
	}

	got, err = r.ListCases(ctx, repo.CaseFilters{Status: domain.StatusInProgress})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != "c-b" {
		t.Fatalf("status filter: %+v", got)
	}
}

func TestAPIKeyLookupByHash(t *testing.T) {
	r, ctx := newTestRepo(t)
	actor := domain.Actor{ID: "ana-1", Role: domain.RoleAnalyst, CreatedAt: "2026-03-01T09:00:00Z"}
	if err := r.InsertActor(ctx, actor); err != nil {
		t.Fatalf("insert actor: %v", err)
	}
	raw := "secret-key-material"
	k := domain.APIKey{
		ID:        "key-1",
		ActorID:   actor.ID,
		KeyHash:   repo.HashAPIKey(raw),
		CreatedAt: "2026-03-01T09:00:00Z",
	}
	if err := r.InsertAPIKey(ctx, k); err != nil {
		t.Fatalf("insert key: %v", err)
	}
	got, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(raw))
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.ActorID != actor.ID {
		t.Fatalf("actor: %s", got.ActorID)
	}
	if _, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey("wrong")); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("wrong key: %v", err)
	}
}
