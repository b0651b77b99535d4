package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"caseline/internal/domain"
)

// Repo is the SQL-backed case store. It is injected into the engine and the
// server; nothing in this package holds process-wide state.
type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound = errors.New("not found")

	// ErrVersionMismatch reports that a versioned update matched no row
	// because the case advanced since it was loaded.
	ErrVersionMismatch = errors.New("case version mismatch")
)

const caseColumns = `id,client_id,client_name,client_category,priority,risk_rating,jurisdiction,lob,
status,assignee,previous_assignee,escalation_pending,pending_manager_id,
review_reasons_json,return_reason,escalation_reasons_json,
created_at,due_date,completed_at,status_changed_at,version`

func (r Repo) InsertCase(ctx context.Context, c domain.Case) error {
	return insertCase(ctx, r.DB.ExecContext, c)
}

func (r Repo) InsertCaseTx(ctx context.Context, tx *sql.Tx, c domain.Case) error {
	return insertCase(ctx, tx.ExecContext, c)
}

type execFunc func(ctx context.Context, query string, args ...any) (sql.Result, error)

func insertCase(ctx context.Context, exec execFunc, c domain.Case) error {
	reviewJSON, err := marshalStringSlice(c.ReviewReasons)
	if err != nil {
		return err
	}
	escJSON, err := marshalStringSlice(c.EscalationReasons)
	if err != nil {
		return err
	}
	if c.Version == 0 {
		c.Version = 1
	}
	_, err = exec(ctx, `INSERT INTO cases(`+caseColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.ID, c.ClientID, nullable(c.ClientName), string(c.ClientCategory), string(c.Priority), string(c.RiskRating),
		nullable(c.Jurisdiction), nullable(c.LOB),
		string(c.Status), nullable(c.Assignee), nullable(c.PreviousAssignee), boolToInt(c.EscalationPending),
		nullable(c.PendingManagerID), nullableStringPtr(reviewJSON), nullable(c.ReturnReason), nullableStringPtr(escJSON),
		c.CreatedAt, nullable(c.DueDate), nullableStringPtr(c.CompletedAt), c.StatusChangedAt, c.Version)
	return err
}

func (r Repo) GetCase(ctx context.Context, id string) (domain.Case, error) {
	return scanCase(r.DB.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id))
}

func (r Repo) GetCaseTx(ctx context.Context, tx *sql.Tx, id string) (domain.Case, error) {
	return scanCase(tx.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id=?`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (domain.Case, error) {
	var c domain.Case
	var clientName, jurisdiction, lob, assignee, prevAssignee, pendingManager sql.NullString
	var reviewJSON, returnReason, escJSON, dueDate, completedAt sql.NullString
	var escalationPending int
	err := row.Scan(&c.ID, &c.ClientID, &clientName, &c.ClientCategory, &c.Priority, &c.RiskRating,
		&jurisdiction, &lob,
		&c.Status, &assignee, &prevAssignee, &escalationPending, &pendingManager,
		&reviewJSON, &returnReason, &escJSON,
		&c.CreatedAt, &dueDate, &completedAt, &c.StatusChangedAt, &c.Version)
	if err == sql.ErrNoRows {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	c.ClientName = clientName.String
	c.Jurisdiction = jurisdiction.String
	c.LOB = lob.String
	c.Assignee = assignee.String
	c.PreviousAssignee = prevAssignee.String
	c.EscalationPending = escalationPending != 0
	c.PendingManagerID = pendingManager.String
	c.ReturnReason = returnReason.String
	if dueDate.Valid {
		c.DueDate = dueDate.String
	}
	if completedAt.Valid {
		c.CompletedAt = &completedAt.String
	}
	if c.ReviewReasons, err = unmarshalStringSlice(reviewJSON); err != nil {
		return c, fmt.Errorf("case %s review reasons: %w", c.ID, err)
	}
	if c.EscalationReasons, err = unmarshalStringSlice(escJSON); err != nil {
		return c, fmt.Errorf("case %s escalation reasons: %w", c.ID, err)
	}
	return c, nil
}

// UpdateCaseVersioned writes every mutable case field, guarded by the version
// read at load time. The version is advanced by one; a mismatch (the case
// changed underneath the caller) yields ErrVersionMismatch and no write.
func (r Repo) UpdateCaseVersioned(ctx context.Context, tx *sql.Tx, c domain.Case, expectedVersion int64) error {
	reviewJSON, err := marshalStringSlice(c.ReviewReasons)
	if err != nil {
		return err
	}
	escJSON, err := marshalStringSlice(c.EscalationReasons)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `UPDATE cases SET
status=?, assignee=?, previous_assignee=?, escalation_pending=?, pending_manager_id=?,
review_reasons_json=?, return_reason=?, escalation_reasons_json=?,
due_date=?, completed_at=?, status_changed_at=?, version=version+1
WHERE id=? AND version=?`,
		string(c.Status), nullable(c.Assignee), nullable(c.PreviousAssignee), boolToInt(c.EscalationPending),
		nullable(c.PendingManagerID), nullableStringPtr(reviewJSON), nullable(c.ReturnReason), nullableStringPtr(escJSON),
		nullable(c.DueDate), nullableStringPtr(c.CompletedAt), c.StatusChangedAt,
		c.ID, expectedVersion)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionMismatch
	}
	return nil
}

// CaseFilters narrows ListCases. Zero values mean "no filter".
type CaseFilters struct {
	Status          domain.Status
	Assignee        string
	LOB             string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListCases(ctx context.Context, f CaseFilters) ([]domain.Case, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Assignee != "" {
		clauses = append(clauses, "assignee=?")
		args = append(args, f.Assignee)
	}
	if f.LOB != "" {
		clauses = append(clauses, "lob=?")
		args = append(args, f.LOB)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + caseColumns + ` FROM cases ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

// NextUnassignedCase returns the oldest unassigned case, highest priority
// first, optionally restricted to a line of business. FIFO within a priority.
func (r Repo) NextUnassignedCase(ctx context.Context, lob string) (domain.Case, error) {
	clauses := []string{"status=?"}
	args := []any{string(domain.StatusUnassigned)}
	if lob != "" {
		clauses = append(clauses, "lob=?")
		args = append(args, lob)
	}
	query := `SELECT ` + caseColumns + ` FROM cases WHERE ` + strings.Join(clauses, " AND ") + `
ORDER BY CASE priority
  WHEN 'critical' THEN 0
  WHEN 'high' THEN 1
  WHEN 'medium' THEN 2
  ELSE 3 END,
created_at ASC, id ASC LIMIT 1`
	return scanCase(r.DB.QueryRowContext(ctx, query, args...))
}

func (r Repo) CountCasesByStatus(ctx context.Context) (map[domain.Status]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM cases GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[domain.Status]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[domain.Status(status)] = count
	}
	return res, rows.Err()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalStringSlice(in []string) (*string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func unmarshalStringSlice(in sql.NullString) ([]string, error) {
	if !in.Valid || in.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(in.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}
