package workflow

import "caseline/internal/domain"

// Actor identifies who is asking for a transition. The engine trusts the role
// as given; authentication lives at the transport layer.
type Actor struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// Request is one transition intent. Each variant carries exactly the fields
// its transition needs, so a caller cannot smuggle escalation reasons into an
// assignment or a disposition into a return.
type Request interface {
	CaseID() string
	By() Actor

	// expectedVersion is the case version the caller read before deciding
	// on this transition, or zero when the caller has no snapshot to
	// defend. A non-zero value that no longer matches fails as a conflict.
	expectedVersion() int64

	// target is the status the permission matrix is consulted against.
	// For an analyst escalation the applied outcome differs from the
	// target (the status stays put and a pending marker is set), but the
	// permission question is still "may this role escalate from here".
	target() domain.Status
}

// RequestBase is embedded by every request variant. ExpectedVersion is
// optional; callers acting on a snapshot set it to the version they read.
type RequestBase struct {
	Case            string `json:"case_id"`
	Actor           Actor  `json:"actor"`
	ExpectedVersion int64  `json:"expected_version,omitempty"`
}

func (b RequestBase) CaseID() string         { return b.Case }
func (b RequestBase) By() Actor              { return b.Actor }
func (b RequestBase) expectedVersion() int64 { return b.ExpectedVersion }

// AssignRequest hands a case to an assignee. Managers use it for both initial
// assignment and reassignment; analysts use it to pick up unassigned work.
type AssignRequest struct {
	RequestBase
	Assignee string `json:"assignee"`
}

func (AssignRequest) target() domain.Status { return domain.StatusAssigned }

// TriageRequest releases a newly created case into the unassigned pool.
type TriageRequest struct {
	RequestBase
}

func (TriageRequest) target() domain.Status { return domain.StatusUnassigned }

// StartRequest begins work on a case. Analysts start their own assigned
// cases; reviewers start escalated ones and become the assignee.
type StartRequest struct {
	RequestBase
}

func (StartRequest) target() domain.Status { return domain.StatusInProgress }

// EscalateRequest routes a case to a review track. Reason ids must exist in
// the catalog and match the track. From an analyst this records a pending
// escalation for the named manager instead of changing the status.
type EscalateRequest struct {
	RequestBase
	Type      domain.EscalationType `json:"escalation_type"`
	ReasonIDs []string              `json:"reason_ids"`
	ManagerID string                `json:"manager_id,omitempty"`
	Comment   string                `json:"comment,omitempty"`
}

func (EscalateRequest) target() domain.Status { return domain.StatusEscalated }

// ReturnRequest sends a case back to its previous assignee with a reason.
type ReturnRequest struct {
	RequestBase
	Reason string `json:"reason"`
}

func (ReturnRequest) target() domain.Status { return domain.StatusReturned }

// ManualReviewRequest parks a case for manager-side manual review.
type ManualReviewRequest struct {
	RequestBase
	Reasons []string `json:"reasons,omitempty"`
}

func (ManualReviewRequest) target() domain.Status { return domain.StatusManualReview }

// CompleteRequest closes a case with a disposition.
type CompleteRequest struct {
	RequestBase
	Disposition domain.Disposition `json:"disposition,omitempty"`
}

func (CompleteRequest) target() domain.Status { return domain.StatusCompleted }

// ReopenRequest revives a returned case for fresh assignment.
type ReopenRequest struct {
	RequestBase
}

func (ReopenRequest) target() domain.Status { return domain.StatusReopened }

// AbandonRequest terminally drops a case.
type AbandonRequest struct {
	RequestBase
	Reason string `json:"reason,omitempty"`
}

func (AbandonRequest) target() domain.Status { return domain.StatusAbandoned }

// RejectRequest terminally rejects a case.
type RejectRequest struct {
	RequestBase
	Reason string `json:"reason,omitempty"`
}

func (RejectRequest) target() domain.Status { return domain.StatusRejected }

