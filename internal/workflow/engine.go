package workflow

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"caseline/internal/domain"
	"caseline/internal/events"
	"caseline/internal/repo"
	"caseline/internal/rules"
)

// Engine applies case lifecycle transitions. Every mutation runs in one
// transaction together with its audit history entry and event row, guarded by
// the case version read inside that transaction.
type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Catalog *rules.Catalog
	Log     *zap.Logger
	Now     func() time.Time
}

func NewEngine(db *sql.DB, log *zap.Logger) *Engine {
	return &Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Catalog: rules.DefaultCatalog(),
		Log:     log,
		Now:     time.Now,
	}
}

func (e *Engine) timestamp() string {
	return e.Now().UTC().Format(time.RFC3339)
}

func (e *Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// CreateCaseInput is the intake payload for a new case.
type CreateCaseInput struct {
	ClientID       string
	ClientName     string
	ClientCategory domain.ClientCategory
	Priority       domain.Priority
	RiskRating     domain.RiskRating
	Jurisdiction   string
	LOB            string
	DueDate        string
	Actor          Actor
}

// CreateCase registers a new case in status new.
func (e *Engine) CreateCase(ctx context.Context, in CreateCaseInput) (domain.Case, error) {
	if in.ClientID == "" {
		return domain.Case{}, invalidRequestError("", "client_id is required")
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if in.RiskRating == "" {
		in.RiskRating = domain.RiskMedium
	}
	if in.ClientCategory == "" {
		in.ClientCategory = domain.ClientIndividual
	}
	now := e.timestamp()
	c := domain.Case{
		ID:              uuid.NewString(),
		ClientID:        in.ClientID,
		ClientName:      in.ClientName,
		ClientCategory:  in.ClientCategory,
		Priority:        in.Priority,
		RiskRating:      in.RiskRating,
		Jurisdiction:    in.Jurisdiction,
		LOB:             in.LOB,
		Status:          domain.StatusNew,
		CreatedAt:       now,
		DueDate:         in.DueDate,
		StatusChangedAt: now,
		Version:         1,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertCaseTx(ctx, tx, c); err != nil {
		return domain.Case{}, err
	}
	if err := e.Events.Append(ctx, tx, now, events.TypeCaseCreated, c.ID, in.Actor.ID, c); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}
	e.logger().Info("case created",
		zap.String("case_id", c.ID),
		zap.String("client_id", c.ClientID),
		zap.String("priority", string(c.Priority)))
	return c, nil
}

// ApplyTransition validates and applies one transition request. On success
// the returned case reflects the committed state, version included. Rule
// rejections come back as *TransitionError; anything else is a storage
// failure.
func (e *Engine) ApplyTransition(ctx context.Context, req Request) (domain.Case, error) {
	if err := validateRequest(req); err != nil {
		return domain.Case{}, err
	}
	actor := req.By()

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Case{}, err
	}
	defer tx.Rollback()

	c, err := e.Repo.GetCaseTx(ctx, tx, req.CaseID())
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Case{}, notFoundError(req.CaseID())
	}
	if err != nil {
		return domain.Case{}, err
	}

	// A caller defending a snapshot fails before any rule is consulted;
	// re-validating a stale intent against someone else's state would turn
	// a lost race into a misleading forbidden or a silent success.
	if want := req.expectedVersion(); want > 0 && want != c.Version {
		return domain.Case{}, conflictError(c.ID)
	}

	if !rules.CanTransition(actor.Role, c.Status, req.target()) {
		return domain.Case{}, forbiddenError(c.ID, "%s may not move a case from %s to %s",
			actor.Role, c.Status, req.target())
	}

	loadedVersion := c.Version
	from := c.Status
	now := e.timestamp()

	outcome, err := e.apply(&c, req, now)
	if err != nil {
		return domain.Case{}, err
	}
	c.StatusChangedAt = now

	if err := e.Repo.UpdateCaseVersioned(ctx, tx, c, loadedVersion); err != nil {
		if errors.Is(err, repo.ErrVersionMismatch) {
			return domain.Case{}, conflictError(c.ID)
		}
		return domain.Case{}, err
	}

	entry := domain.HistoryEntry{
		ID:                uuid.NewString(),
		CaseID:            c.ID,
		TS:                now,
		ActorID:           actor.ID,
		Role:              actor.Role,
		FromStatus:        from,
		ToStatus:          c.Status,
		Reason:            outcome.reason,
		EscalationReasons: outcome.escalationReasons,
	}
	if err := e.Repo.AppendHistoryTx(ctx, tx, entry); err != nil {
		return domain.Case{}, err
	}
	if err := e.Events.Append(ctx, tx, now, outcome.eventType, c.ID, actor.ID, c); err != nil {
		return domain.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Case{}, err
	}

	c.Version = loadedVersion + 1
	e.logger().Info("transition applied",
		zap.String("case_id", c.ID),
		zap.String("actor", actor.ID),
		zap.String("role", string(actor.Role)),
		zap.String("from", string(from)),
		zap.String("to", string(c.Status)),
		zap.String("event", outcome.eventType))
	return c, nil
}

// validateRequest rejects malformed requests before any storage access.
func validateRequest(req Request) error {
	actor := req.By()
	if req.CaseID() == "" {
		return invalidRequestError("", "case id is required")
	}
	if actor.ID == "" {
		return invalidRequestError(req.CaseID(), "actor id is required")
	}
	if !actor.Role.Valid() {
		return invalidRequestError(req.CaseID(), "unknown role %q", actor.Role)
	}
	switch r := req.(type) {
	case AssignRequest:
		if r.Assignee == "" {
			return invalidRequestError(r.Case, "assignee is required")
		}
	case EscalateRequest:
		if len(r.ReasonIDs) == 0 {
			return invalidRequestError(r.Case, "at least one escalation reason is required")
		}
		switch r.Type {
		case domain.EscalationFirstLine, domain.EscalationSecondLine,
			domain.EscalationManager, domain.EscalationCancellation:
		default:
			return invalidRequestError(r.Case, "unknown escalation type %q", r.Type)
		}
	case ReturnRequest:
		if strings.TrimSpace(r.Reason) == "" {
			return invalidRequestError(r.Case, "a return reason is required")
		}
	case CompleteRequest:
		switch r.Disposition {
		case domain.DispositionNoFactors:
		case "":
			return invalidRequestError(r.Case, "a completion disposition is required")
		case domain.DispositionEscalateFirst, domain.DispositionEscalateSecond, domain.DispositionReturnToAssignee:
			return invalidRequestError(r.Case, "disposition %s is not a completion, use escalate or return", r.Disposition)
		default:
			return invalidRequestError(r.Case, "unknown disposition %q", r.Disposition)
		}
	}
	return nil
}

// transitionOutcome captures what a variant wrote, for the audit entry and
// event row.
type transitionOutcome struct {
	eventType         string
	reason            string
	escalationReasons []string
}

// apply mutates the loaded case per the request variant. The permission
// matrix has already allowed the move; this layer owns assignee bookkeeping,
// pending escalation markers, and catalog validation.
func (e *Engine) apply(c *domain.Case, req Request, now string) (transitionOutcome, error) {
	switch r := req.(type) {
	case TriageRequest:
		c.Status = domain.StatusUnassigned
		c.Assignee = domain.Unassigned
		return transitionOutcome{eventType: events.TypeCaseTriaged, reason: "released to queue"}, nil

	case AssignRequest:
		if r.Actor.Role == domain.RoleAnalyst && r.Assignee != r.Actor.ID {
			return transitionOutcome{}, forbiddenError(c.ID, "an analyst may only assign a case to themselves")
		}
		if c.Assignee != domain.Unassigned {
			c.PreviousAssignee = c.Assignee
		}
		c.Status = domain.StatusAssigned
		c.Assignee = r.Assignee
		c.EscalationPending = false
		c.PendingManagerID = ""
		c.ReturnReason = ""
		return transitionOutcome{eventType: events.TypeCaseAssigned}, nil

	case StartRequest:
		if c.Status == domain.StatusEscalated {
			// A reviewer picking up an escalation becomes the assignee.
			c.PreviousAssignee = firstNonEmpty(c.PreviousAssignee, c.Assignee)
			c.Assignee = r.Actor.ID
		} else if c.Assignee != r.Actor.ID && !r.Actor.Role.Reviewer() && r.Actor.Role != domain.RoleManager {
			return transitionOutcome{}, forbiddenError(c.ID, "only the assignee may start this case")
		}
		c.Status = domain.StatusInProgress
		return transitionOutcome{eventType: events.TypeCaseStarted}, nil

	case EscalateRequest:
		requiresManager, err := e.Catalog.ValidateSelection(r.Type, r.ReasonIDs)
		if err != nil {
			return transitionOutcome{}, invalidRequestError(c.ID, "%s", err)
		}
		if r.Actor.Role == domain.RoleAnalyst {
			// An analyst escalation is a request, not a move: the case
			// stays where it is and waits for the manager to route it.
			if r.ManagerID == "" {
				return transitionOutcome{}, invalidRequestError(c.ID, "an analyst escalation names the approving manager")
			}
			c.EscalationPending = true
			c.PendingManagerID = r.ManagerID
			c.EscalationReasons = append([]string(nil), r.ReasonIDs...)
			return transitionOutcome{
				eventType:         events.TypeCaseEscalationPending,
				reason:            r.Comment,
				escalationReasons: r.ReasonIDs,
			}, nil
		}
		if requiresManager && r.Actor.Role != domain.RoleManager {
			return transitionOutcome{}, forbiddenError(c.ID, "the selected reasons require a manager to escalate")
		}
		if c.Assignee != domain.Unassigned {
			c.PreviousAssignee = c.Assignee
		}
		c.Status = domain.StatusEscalated
		c.Assignee = domain.Unassigned
		c.EscalationPending = false
		c.PendingManagerID = ""
		c.EscalationReasons = append([]string(nil), r.ReasonIDs...)
		return transitionOutcome{
			eventType:         events.TypeCaseEscalated,
			reason:            r.Comment,
			escalationReasons: r.ReasonIDs,
		}, nil

	case ReturnRequest:
		c.Status = domain.StatusReturned
		c.Assignee = c.PreviousAssignee
		c.ReturnReason = r.Reason
		c.EscalationPending = false
		c.PendingManagerID = ""
		return transitionOutcome{eventType: events.TypeCaseReturned, reason: r.Reason}, nil

	case ManualReviewRequest:
		c.Status = domain.StatusManualReview
		if len(r.Reasons) > 0 {
			c.ReviewReasons = append([]string(nil), r.Reasons...)
		}
		return transitionOutcome{eventType: events.TypeCaseManualReview, reason: strings.Join(r.Reasons, "; ")}, nil

	case CompleteRequest:
		if r.Actor.Role == domain.RoleAnalyst && c.Assignee != r.Actor.ID {
			return transitionOutcome{}, forbiddenError(c.ID, "only the assignee may complete this case")
		}
		c.Status = domain.StatusCompleted
		c.CompletedAt = &now
		c.EscalationPending = false
		c.PendingManagerID = ""
		return transitionOutcome{eventType: events.TypeCaseCompleted, reason: string(r.Disposition)}, nil

	case ReopenRequest:
		c.Status = domain.StatusReopened
		c.PreviousAssignee = firstNonEmpty(c.Assignee, c.PreviousAssignee)
		c.Assignee = domain.Unassigned
		c.ReturnReason = ""
		return transitionOutcome{eventType: events.TypeCaseReopened}, nil

	case AbandonRequest:
		c.Status = domain.StatusAbandoned
		c.EscalationPending = false
		c.PendingManagerID = ""
		return transitionOutcome{eventType: events.TypeCaseAbandoned, reason: r.Reason}, nil

	case RejectRequest:
		c.Status = domain.StatusRejected
		c.EscalationPending = false
		c.PendingManagerID = ""
		return transitionOutcome{eventType: events.TypeCaseRejected, reason: r.Reason}, nil
	}
	return transitionOutcome{}, invalidRequestError(c.ID, "unsupported request type")
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
