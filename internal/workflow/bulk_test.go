package workflow_test

import (
	"testing"

	"caseline/internal/domain"
	"caseline/internal/workflow"
)

func TestBulkReassignPartialFailure(t *testing.T) {
	env := newTestEnv(t)

	var ids []string
	for i := 0; i < 4; i++ {
		c := env.createAssigned(t)
		ids = append(ids, c.ID)
	}
	// drive one case terminal so its reassign must fail
	terminal := ids[2]
	env.transition(t, workflow.StartRequest{RequestBase: base(terminal, analyst)})
	env.transition(t, workflow.CompleteRequest{RequestBase: base(terminal, analyst), Disposition: domain.DispositionNoFactors})

	res, err := env.Engine.BulkReassign(env.Ctx, manager, ids, "ana-2")
	if err != nil {
		t.Fatalf("bulk reassign: %v", err)
	}
	if res.Succeeded != 3 || res.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	if len(res.Outcomes) != len(ids) {
		t.Fatalf("outcomes: %d", len(res.Outcomes))
	}
	for i, o := range res.Outcomes {
		if o.CaseID != ids[i] {
			t.Fatalf("outcome %d out of order: %s", i, o.CaseID)
		}
		if o.CaseID == terminal {
			if workflow.KindOf(o.Err) != workflow.KindForbidden {
				t.Fatalf("terminal case outcome: %v", o.Err)
			}
			continue
		}
		if o.Err != nil {
			t.Fatalf("case %s: %v", o.CaseID, o.Err)
		}
		if o.Case.Assignee != "ana-2" {
			t.Fatalf("case %s assignee: %s", o.CaseID, o.Case.Assignee)
		}
	}

	// the failed case is untouched
	got, err := env.Engine.Repo.GetCase(env.Ctx, terminal)
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if got.Status != domain.StatusCompleted {
		t.Fatalf("terminal case mutated: %s", got.Status)
	}
}

func TestBulkRejectsEmptyIDList(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.BulkReassign(env.Ctx, manager, nil, "ana-2")
	if workflow.KindOf(err) != workflow.KindInvalidRequest {
		t.Fatalf("empty bulk: %v", err)
	}
}

func TestBulkAbandonAttemptsEveryCase(t *testing.T) {
	env := newTestEnv(t)
	good := env.createAssigned(t)
	ids := []string{"missing-1", good.ID, "missing-2"}

	res, err := env.Engine.BulkAbandon(env.Ctx, manager, ids, "batch cleanup")
	if err != nil {
		t.Fatalf("bulk abandon: %v", err)
	}
	if res.Succeeded != 1 || res.Failed != 2 {
		t.Fatalf("succeeded=%d failed=%d", res.Succeeded, res.Failed)
	}
	if workflow.KindOf(res.Outcomes[0].Err) != workflow.KindNotFound {
		t.Fatalf("missing case outcome: %v", res.Outcomes[0].Err)
	}
	if res.Outcomes[1].Err != nil {
		t.Fatalf("good case failed: %v", res.Outcomes[1].Err)
	}
	if res.Outcomes[1].Case.Status != domain.StatusAbandoned {
		t.Fatalf("good case status: %s", res.Outcomes[1].Case.Status)
	}
}
