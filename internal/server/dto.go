package server

import (
	"caseline/internal/domain"
	"caseline/internal/queue"
	"caseline/internal/workflow"
)

type CreateCaseRequest struct {
	ClientID       string                `json:"client_id"`
	ClientName     string                `json:"client_name,omitempty"`
	ClientCategory domain.ClientCategory `json:"client_category,omitempty" enum:"individual,corporate,investment,banking" required:"false"`
	Priority       domain.Priority       `json:"priority,omitempty" enum:"low,medium,high,critical" required:"false"`
	RiskRating     domain.RiskRating     `json:"risk_rating,omitempty" enum:"low,medium,high" required:"false"`
	Jurisdiction   string                `json:"jurisdiction,omitempty"`
	LOB            string                `json:"lob,omitempty"`
	DueDate        string                `json:"due_date,omitempty"`
}

// TransitionRequest is the shared body for the per-transition endpoints.
// Each endpoint reads only the fields its transition uses. ExpectedVersion
// is honored by every endpoint: a caller that read the case at some version
// can set it and receive a 409 instead of acting on stale state.
type TransitionRequest struct {
	ExpectedVersion int64                 `json:"expected_version,omitempty"`
	Assignee        string                `json:"assignee,omitempty"`
	EscalationType  domain.EscalationType `json:"escalation_type,omitempty" enum:"first-line,second-line,manager,cancellation" required:"false"`
	ReasonIDs       []string              `json:"reason_ids,omitempty"`
	ManagerID       string                `json:"manager_id,omitempty"`
	Comment         string                `json:"comment,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	Reasons         []string              `json:"reasons,omitempty"`
	Disposition     domain.Disposition    `json:"disposition,omitempty" required:"false"`
}

type NextCaseRequest struct {
	LOB string `json:"lob,omitempty"`
}

type BulkRequest struct {
	Operation string   `json:"operation" enum:"reassign,abandon"`
	CaseIDs   []string `json:"case_ids"`
	Assignee  string   `json:"assignee,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

type BulkOutcomeResponse struct {
	CaseID string        `json:"case_id"`
	OK     bool          `json:"ok"`
	Case   *domain.Case  `json:"case,omitempty"`
	Error  *apiErrorBody `json:"error,omitempty"`
}

type BulkResponse struct {
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Outcomes  []BulkOutcomeResponse `json:"outcomes"`
}

func newBulkResponse(res workflow.BulkResult) BulkResponse {
	out := BulkResponse{Succeeded: res.Succeeded, Failed: res.Failed}
	for _, o := range res.Outcomes {
		r := BulkOutcomeResponse{CaseID: o.CaseID, OK: o.Err == nil}
		if o.Err == nil {
			c := o.Case
			r.Case = &c
		} else {
			env := handleError(o.Err)
			if ae, ok := env.(*apiError); ok {
				body := ae.Body
				r.Error = &body
			} else {
				r.Error = &apiErrorBody{Code: "internal_error", Message: o.Err.Error()}
			}
		}
		out.Outcomes = append(out.Outcomes, r)
	}
	return out
}

type CaseListResponse struct {
	Cases []domain.Case `json:"cases"`
}

type ReasonListResponse struct {
	Reasons []domain.EscalationReason `json:"reasons"`
}

type ActionsResponse struct {
	CaseID  string          `json:"case_id"`
	Status  domain.Status   `json:"status"`
	Role    domain.Role     `json:"role"`
	Targets []domain.Status `json:"targets"`
}

type QueueItem struct {
	Case        domain.Case `json:"case"`
	DaysInQueue int         `json:"days_in_queue"`
}

type QueueResponse struct {
	Queue queue.Queue `json:"queue"`
	Items []QueueItem `json:"items"`
}

type HistoryResponse struct {
	CaseID  string                `json:"case_id"`
	Entries []domain.HistoryEntry `json:"entries"`
}

type CreateActorRequest struct {
	ID   string      `json:"id"`
	Name string      `json:"name,omitempty"`
	Role domain.Role `json:"role" enum:"analyst,manager,first-line-reviewer,second-line-reviewer,view-only"`
	LOB  string      `json:"lob,omitempty"`
}

type ActorListResponse struct {
	Actors []domain.Actor `json:"actors"`
}

type EventListResponse struct {
	Events []domain.Event `json:"events"`
}
