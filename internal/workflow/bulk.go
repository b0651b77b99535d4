package workflow

import (
	"context"

	"go.uber.org/zap"

	"caseline/internal/domain"
)

// BulkOutcome is the per-case result of a bulk operation, in the order the
// case ids were submitted. Exactly one of Case and Err is set.
type BulkOutcome struct {
	CaseID string
	Case   domain.Case
	Err    error
}

// BulkResult summarises a bulk run.
type BulkResult struct {
	Outcomes  []BulkOutcome
	Succeeded int
	Failed    int
}

// ApplyBulk applies build(caseID) to every id, one transaction per case in
// submission order. One case failing never stops the others: every id is
// attempted and gets its own outcome, and the call returns only after all of
// them finished. Only an empty id list is rejected outright.
func (e *Engine) ApplyBulk(ctx context.Context, caseIDs []string, build func(caseID string) Request) (BulkResult, error) {
	if len(caseIDs) == 0 {
		return BulkResult{}, invalidRequestError("", "bulk operation needs at least one case id")
	}

	outcomes := make([]BulkOutcome, len(caseIDs))
	for i, id := range caseIDs {
		c, err := e.ApplyTransition(ctx, build(id))
		outcomes[i] = BulkOutcome{CaseID: id, Case: c, Err: err}
	}

	res := BulkResult{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Err != nil {
			res.Failed++
		} else {
			res.Succeeded++
		}
	}
	e.logger().Info("bulk operation finished",
		zap.Int("cases", len(caseIDs)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed))
	return res, nil
}

// BulkReassign moves every listed case to the given assignee.
func (e *Engine) BulkReassign(ctx context.Context, actor Actor, caseIDs []string, assignee string) (BulkResult, error) {
	return e.ApplyBulk(ctx, caseIDs, func(id string) Request {
		return AssignRequest{RequestBase: RequestBase{Case: id, Actor: actor}, Assignee: assignee}
	})
}

// BulkAbandon terminally drops every listed case with one shared reason.
func (e *Engine) BulkAbandon(ctx context.Context, actor Actor, caseIDs []string, reason string) (BulkResult, error) {
	return e.ApplyBulk(ctx, caseIDs, func(id string) Request {
		return AbandonRequest{RequestBase: RequestBase{Case: id, Actor: actor}, Reason: reason}
	})
}
