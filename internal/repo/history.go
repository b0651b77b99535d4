package repo

import (
	"context"
	"database/sql"

	"caseline/internal/domain"
)

// AppendHistoryTx records one audit entry. History rows share the transaction
// of the case mutation they describe, so a rolled-back transition leaves no
// trace.
func (r Repo) AppendHistoryTx(ctx context.Context, tx *sql.Tx, h domain.HistoryEntry) error {
	escJSON, err := marshalStringSlice(h.EscalationReasons)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO case_history(id,case_id,ts,actor_id,role,from_status,to_status,reason,escalation_reasons_json)
VALUES (?,?,?,?,?,?,?,?,?)`,
		h.ID, h.CaseID, h.TS, h.ActorID, string(h.Role), string(h.FromStatus), string(h.ToStatus),
		nullable(h.Reason), nullableStringPtr(escJSON))
	return err
}

// ListHistory returns a case's audit trail oldest first.
func (r Repo) ListHistory(ctx context.Context, caseID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,case_id,ts,actor_id,role,from_status,to_status,reason,escalation_reasons_json
FROM case_history WHERE case_id=? ORDER BY ts ASC, id ASC`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var reason, escJSON sql.NullString
		if err := rows.Scan(&h.ID, &h.CaseID, &h.TS, &h.ActorID, &h.Role, &h.FromStatus, &h.ToStatus, &reason, &escJSON); err != nil {
			return nil, err
		}
		h.Reason = reason.String
		if h.EscalationReasons, err = unmarshalStringSlice(escJSON); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
