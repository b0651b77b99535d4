package domain

// Status is the case workflow status. Completed, abandoned and rejected are
// terminal; a terminal case accepts no further transitions.
type Status string

const (
	StatusNew          Status = "new"
	StatusUnassigned   Status = "unassigned"
	StatusAssigned     Status = "assigned"
	StatusInProgress   Status = "in-progress"
	StatusManualReview Status = "manual-review"
	StatusEscalated    Status = "escalated"
	StatusReturned     Status = "returned"
	StatusReopened     Status = "reopened"
	StatusCompleted    Status = "completed"
	StatusAbandoned    Status = "abandoned"
	StatusRejected     Status = "rejected"
)

// Statuses lists every known status in workflow order.
var Statuses = []Status{
	StatusNew, StatusUnassigned, StatusAssigned, StatusInProgress,
	StatusManualReview, StatusEscalated, StatusReturned, StatusReopened,
	StatusCompleted, StatusAbandoned, StatusRejected,
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusRejected
}

// Active reports whether the case counts toward an assignee's active workload.
func (s Status) Active() bool {
	return s == StatusAssigned || s == StatusInProgress
}

// PreAssignment statuses are the only ones where the case may be unassigned.
func (s Status) PreAssignment() bool {
	return s == StatusNew || s == StatusUnassigned || s == StatusEscalated
}

// Role identifies an acting role in the review workflow.
type Role string

const (
	RoleAnalyst    Role = "analyst"
	RoleManager    Role = "manager"
	RoleFirstLine  Role = "first-line-reviewer"
	RoleSecondLine Role = "second-line-reviewer"
	RoleViewOnly   Role = "view-only"
)

var Roles = []Role{RoleAnalyst, RoleManager, RoleFirstLine, RoleSecondLine, RoleViewOnly}

func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Reviewer reports whether the role is one of the two specialist review roles.
func (r Role) Reviewer() bool {
	return r == RoleFirstLine || r == RoleSecondLine
}

// Priority of a case.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// RiskRating of the client under review.
type RiskRating string

const (
	RiskLow    RiskRating = "low"
	RiskMedium RiskRating = "medium"
	RiskHigh   RiskRating = "high"
)

// ClientCategory of the client under review.
type ClientCategory string

const (
	ClientIndividual ClientCategory = "individual"
	ClientCorporate  ClientCategory = "corporate"
	ClientInvestment ClientCategory = "investment"
	ClientBanking    ClientCategory = "banking"
)

// Disposition is the decision an analyst or manager records at closure or
// hand-off time. It constrains which escalation reasons are selectable.
type Disposition string

const (
	DispositionNoFactors        Disposition = "no_factors"
	DispositionEscalateFirst    Disposition = "escalate_first_line"
	DispositionEscalateSecond   Disposition = "escalate_second_line"
	DispositionReturnToAssignee Disposition = "return_analyst"
)

// EscalationType selects the review track an escalation is routed to.
type EscalationType string

const (
	EscalationFirstLine    EscalationType = "first-line"
	EscalationSecondLine   EscalationType = "second-line"
	EscalationManager      EscalationType = "manager"
	EscalationCancellation EscalationType = "cancellation"
)

// Unassigned is the assignee value of a case nobody holds.
const Unassigned = ""

// Case is the unit of work tracked through the review lifecycle. Timestamps
// are RFC3339 strings in UTC. A case is never deleted; terminal statuses are
// retained for audit.
type Case struct {
	ID             string         `json:"id"`
	ClientID       string         `json:"client_id"`
	ClientName     string         `json:"client_name,omitempty"`
	ClientCategory ClientCategory `json:"client_category" enum:"individual,corporate,investment,banking"`
	Priority       Priority       `json:"priority" enum:"low,medium,high,critical"`
	RiskRating     RiskRating     `json:"risk_rating" enum:"low,medium,high"`
	Jurisdiction   string         `json:"jurisdiction,omitempty"`
	LOB            string         `json:"lob,omitempty"`

	Status            Status   `json:"status" enum:"new,unassigned,assigned,in-progress,manual-review,escalated,returned,reopened,completed,abandoned,rejected"`
	Assignee          string   `json:"assignee,omitempty"`
	PreviousAssignee  string   `json:"previous_assignee,omitempty"`
	EscalationPending bool     `json:"escalation_pending,omitempty"`
	PendingManagerID  string   `json:"pending_manager_id,omitempty"`
	ReviewReasons     []string `json:"review_reasons,omitempty"`
	ReturnReason      string   `json:"return_reason,omitempty"`
	EscalationReasons []string `json:"escalation_reasons,omitempty"`

	CreatedAt       string  `json:"created_at" format:"date-time"`
	DueDate         string  `json:"due_date,omitempty"`
	CompletedAt     *string `json:"completed_at,omitempty" format:"date-time"`
	StatusChangedAt string  `json:"status_changed_at" format:"date-time"`
	Version         int64   `json:"version"`
}

// HistoryEntry is one immutable audit record of a case transition. Entries are
// appended in the same transaction as the case mutation and never modified.
type HistoryEntry struct {
	ID                string   `json:"id"`
	CaseID            string   `json:"case_id"`
	TS                string   `json:"ts" format:"date-time"`
	ActorID           string   `json:"actor_id"`
	Role              Role     `json:"role"`
	FromStatus        Status   `json:"from_status"`
	ToStatus          Status   `json:"to_status"`
	Reason            string   `json:"reason,omitempty"`
	EscalationReasons []string `json:"escalation_reasons,omitempty"`
}

// EscalationReason is one catalog entry. TargetRole decides which review track
// offers the reason; RequiresManager forces the manager approval path.
type EscalationReason struct {
	ID              string `json:"id" yaml:"id"`
	Label           string `json:"label" yaml:"label"`
	Description     string `json:"description,omitempty" yaml:"description"`
	TargetRole      Role   `json:"target_role" yaml:"target_role"`
	RequiresManager bool   `json:"requires_manager" yaml:"requires_manager"`
}

// Actor is a workflow participant.
type Actor struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Role      Role   `json:"role"`
	LOB       string `json:"lob,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// APIKey authenticates an actor on the HTTP API. KeyHash is a SHA-256 digest.
type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Event is one row of the append-only engine event log, used for webhook
// delivery and operational inspection. The formal audit trail is HistoryEntry.
type Event struct {
	ID      int64  `json:"id"`
	TS      string `json:"ts" format:"date-time"`
	Type    string `json:"type"`
	CaseID  string `json:"case_id,omitempty"`
	ActorID string `json:"actor_id"`
	Payload string `json:"payload_json"`
}
