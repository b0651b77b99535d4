package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Event types emitted by the lifecycle engine.
const (
	TypeCaseCreated           = "case.created"
	TypeCaseTriaged           = "case.triaged"
	TypeCaseAssigned          = "case.assigned"
	TypeCaseStarted           = "case.started"
	TypeCaseEscalationPending = "case.escalation_pending"
	TypeCaseEscalated         = "case.escalated"
	TypeCaseReturned          = "case.returned"
	TypeCaseCompleted         = "case.completed"
	TypeCaseReopened          = "case.reopened"
	TypeCaseAbandoned         = "case.abandoned"
	TypeCaseRejected          = "case.rejected"
	TypeCaseManualReview      = "case.manual_review"
)

// Writer appends to the engine event log. Append shares the caller's
// transaction so an event never outlives a rolled-back mutation.
type Writer struct{}

func (Writer) Append(ctx context.Context, tx *sql.Tx, ts, eventType, caseID, actorID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	var cid any
	if caseID != "" {
		cid = caseID
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,case_id,actor_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, eventType, cid, actorID, string(body))
	return err
}
