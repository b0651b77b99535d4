package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"caseline/internal/domain"
	"caseline/internal/queue"
	"caseline/internal/repo"
	"caseline/internal/rules"
	"caseline/internal/workflow"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *workflow.Engine
	BasePath string
	Auth     AuthConfig
	Log      *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"forbidden"`
	Message string         `json:"message" example:"analyst may not move a case from assigned to rejected"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError is the error envelope every endpoint returns.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Caseline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Caseline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerHealth(group)
	registerReasons(group, cfg.Engine)
	registerCases(group, cfg.Engine)
	registerTransitions(group, cfg.Engine)
	registerBulk(group, cfg.Engine)
	registerQueues(group, cfg.Engine)
	registerHistory(group, cfg.Engine)
	registerActors(group, cfg.Engine)
	registerEvents(group, cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine and repo failures onto the error envelope. The
// transition error kinds carry the status; everything else is internal.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var te *workflow.TransitionError
	if errors.As(err, &te) {
		details := map[string]any{}
		if te.CaseID != "" {
			details["case_id"] = te.CaseID
		}
		switch te.Kind {
		case workflow.KindNotFound:
			return newAPIError(http.StatusNotFound, "not_found", te.Message, details)
		case workflow.KindForbidden:
			return newAPIError(http.StatusForbidden, "forbidden", te.Message, details)
		case workflow.KindInvalidRequest:
			return newAPIError(http.StatusBadRequest, "bad_request", te.Message, details)
		case workflow.KindConflict:
			return newAPIError(http.StatusConflict, "conflict", te.Message, details)
		}
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

var transitionErrors = []int{
	http.StatusBadRequest,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusInternalServerError,
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerReasons(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-escalation-reasons",
		Method:      http.MethodGet,
		Path:        "/reasons",
		Summary:     "List escalation reasons",
	}, func(ctx context.Context, input *struct {
		Type string `query:"escalation_type" enum:"first-line,second-line,manager,cancellation" required:"false"`
	}) (*struct {
		Body ReasonListResponse `json:"body"`
	}, error) {
		var reasons []domain.EscalationReason
		if input.Type != "" {
			reasons = e.Catalog.ForType(domain.EscalationType(input.Type))
		} else {
			reasons = e.Catalog.All()
		}
		return &struct {
			Body ReasonListResponse `json:"body"`
		}{Body: ReasonListResponse{Reasons: reasons}}, nil
	})
}

func registerCases(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-case",
		Method:        http.MethodPost,
		Path:          "/cases",
		Summary:       "Create case",
		DefaultStatus: http.StatusCreated,
		Errors:        transitionErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		actor, authErr := workflowActorFromContext(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCase(ctx, workflow.CreateCaseInput{
			ClientID:       input.Body.ClientID,
			ClientName:     input.Body.ClientName,
			ClientCategory: input.Body.ClientCategory,
			Priority:       input.Body.Priority,
			RiskRating:     input.Body.RiskRating,
			Jurisdiction:   input.Body.Jurisdiction,
			LOB:            input.Body.LOB,
			DueDate:        input.Body.DueDate,
			Actor:          actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-cases",
		Method:      http.MethodGet,
		Path:        "/cases",
		Summary:     "List cases",
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status" required:"false"`
		Assignee string `query:"assignee" required:"false"`
		LOB      string `query:"lob" required:"false"`
		Limit    int    `query:"limit" required:"false"`
	}) (*struct {
		Body CaseListResponse `json:"body"`
	}, error) {
		cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{
			Status:   domain.Status(input.Status),
			Assignee: input.Assignee,
			LOB:      input.LOB,
			Limit:    input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CaseListResponse `json:"body"`
		}{Body: CaseListResponse{Cases: cases}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}",
		Summary:     "Get case",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *casePath) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-case-actions",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/actions",
		Summary:     "List statuses the caller may move the case to",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *casePath) (*struct {
		Body ActionsResponse `json:"body"`
	}, error) {
		actor, authErr := workflowActorFromContext(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.Repo.GetCase(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActionsResponse `json:"body"`
		}{Body: ActionsResponse{
			CaseID:  c.ID,
			Status:  c.Status,
			Role:    actor.Role,
			Targets: rules.PermittedTargets(actor.Role, c.Status),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-next-case",
		Method:      http.MethodPost,
		Path:        "/cases/next",
		Summary:     "Claim the next unassigned case",
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *struct {
		Body NextCaseRequest `json:"body"`
	}) (*struct {
		Body domain.Case `json:"body"`
	}, error) {
		actor, authErr := workflowActorFromContext(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		next, err := e.Repo.NextUnassignedCase(ctx, input.Body.LOB)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusNotFound, "not_found", "no unassigned cases", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		c, err := e.ApplyTransition(ctx, workflow.AssignRequest{
			RequestBase: workflow.RequestBase{Case: next.ID, Actor: actor},
			Assignee:    actor.ID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Case `json:"body"`
		}{Body: c}, nil
	})
}

type casePath struct {
	CaseID string `path:"case_id"`
}

func registerTransitions(api huma.API, e *workflow.Engine) {
	register := func(op, summary string, build func(base workflow.RequestBase, body TransitionRequest) workflow.Request) {
		huma.Register(api, huma.Operation{
			OperationID: op + "-case",
			Method:      http.MethodPost,
			Path:        "/cases/{case_id}/" + op,
			Summary:     summary,
			Errors:      transitionErrors,
		}, func(ctx context.Context, input *struct {
			CaseID string            `path:"case_id"`
			Body   TransitionRequest `json:"body"`
		}) (*struct {
			Body domain.Case `json:"body"`
		}, error) {
			actor, authErr := workflowActorFromContext(ctx, e)
			if authErr != nil {
				return nil, authErr
			}
			req := build(workflow.RequestBase{
				Case:            input.CaseID,
				Actor:           actor,
				ExpectedVersion: input.Body.ExpectedVersion,
			}, input.Body)
			c, err := e.ApplyTransition(ctx, req)
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Case `json:"body"`
			}{Body: c}, nil
		})
	}

	register("triage", "Release a new case to the unassigned pool", func(b workflow.RequestBase, _ TransitionRequest) workflow.Request {
		return workflow.TriageRequest{RequestBase: b}
	})
	register("assign", "Assign or reassign a case", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.AssignRequest{RequestBase: b, Assignee: body.Assignee}
	})
	register("start", "Start work on a case", func(b workflow.RequestBase, _ TransitionRequest) workflow.Request {
		return workflow.StartRequest{RequestBase: b}
	})
	register("escalate", "Escalate a case to a review track", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.EscalateRequest{
			RequestBase: b,
			Type:        body.EscalationType,
			ReasonIDs:   body.ReasonIDs,
			ManagerID:   body.ManagerID,
			Comment:     body.Comment,
		}
	})
	register("return", "Return a case to its previous assignee", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.ReturnRequest{RequestBase: b, Reason: body.Reason}
	})
	register("review", "Park a case for manual review", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.ManualReviewRequest{RequestBase: b, Reasons: body.Reasons}
	})
	register("complete", "Complete a case", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.CompleteRequest{RequestBase: b, Disposition: body.Disposition}
	})
	register("reopen", "Reopen a returned case", func(b workflow.RequestBase, _ TransitionRequest) workflow.Request {
		return workflow.ReopenRequest{RequestBase: b}
	})
	register("abandon", "Abandon a case", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.AbandonRequest{RequestBase: b, Reason: body.Reason}
	})
	register("reject", "Reject a case", func(b workflow.RequestBase, body TransitionRequest) workflow.Request {
		return workflow.RejectRequest{RequestBase: b, Reason: body.Reason}
	})
}

func registerBulk(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "bulk-transition",
		Method:      http.MethodPost,
		Path:        "/cases/bulk",
		Summary:     "Apply one operation to many cases",
		Description: "Every case is attempted; per-case outcomes are returned in submission order.",
		Errors:      transitionErrors,
	}, func(ctx context.Context, input *struct {
		Body BulkRequest `json:"body"`
	}) (*struct {
		Body BulkResponse `json:"body"`
	}, error) {
		actor, authErr := workflowActorFromContext(ctx, e)
		if authErr != nil {
			return nil, authErr
		}
		var res workflow.BulkResult
		var err error
		switch input.Body.Operation {
		case "reassign":
			if input.Body.Assignee == "" {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "assignee is required for reassign", nil)
			}
			res, err = e.BulkReassign(ctx, actor, input.Body.CaseIDs, input.Body.Assignee)
		case "abandon":
			res, err = e.BulkAbandon(ctx, actor, input.Body.CaseIDs, input.Body.Reason)
		default:
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "operation must be reassign or abandon", nil)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BulkResponse `json:"body"`
		}{Body: newBulkResponse(res)}, nil
	})
}

func registerQueues(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-queue",
		Method:      http.MethodGet,
		Path:        "/queues/{queue}",
		Summary:     "List a workbasket queue",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Queue    string `path:"queue" enum:"all,active,escalations,completed,returned"`
		Assignee string `query:"assignee" required:"false"`
		LOB      string `query:"lob" required:"false"`
	}) (*struct {
		Body QueueResponse `json:"body"`
	}, error) {
		q := queue.Queue(input.Queue)
		if !q.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown queue "+input.Queue, nil)
		}
		cases, err := e.Repo.ListCases(ctx, repo.CaseFilters{Assignee: input.Assignee, LOB: input.LOB})
		if err != nil {
			return nil, handleError(err)
		}
		now := e.Now()
		matched := queue.Filter(cases, q, now)
		items := make([]QueueItem, 0, len(matched))
		for _, c := range matched {
			items = append(items, QueueItem{Case: c, DaysInQueue: queue.DaysIn(c, now)})
		}
		return &struct {
			Body QueueResponse `json:"body"`
		}{Body: QueueResponse{Queue: q, Items: items}}, nil
	})
}

func registerHistory(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-case-history",
		Method:      http.MethodGet,
		Path:        "/cases/{case_id}/history",
		Summary:     "Get case audit history",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *casePath) (*struct {
		Body HistoryResponse `json:"body"`
	}, error) {
		if _, err := e.Repo.GetCase(ctx, input.CaseID); err != nil {
			return nil, handleError(err)
		}
		entries, err := e.Repo.ListHistory(ctx, input.CaseID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body HistoryResponse `json:"body"`
		}{Body: HistoryResponse{CaseID: input.CaseID, Entries: entries}}, nil
	})
}

func registerActors(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-actors",
		Method:      http.MethodGet,
		Path:        "/actors",
		Summary:     "List actors",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ActorListResponse `json:"body"`
	}, error) {
		actors, err := e.Repo.ListActors(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ActorListResponse `json:"body"`
		}{Body: ActorListResponse{Actors: actors}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-actor",
		Method:        http.MethodPost,
		Path:          "/actors",
		Summary:       "Register an actor",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body CreateActorRequest `json:"body"`
	}) (*struct {
		Body domain.Actor `json:"body"`
	}, error) {
		if input.Body.ID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "id is required", nil)
		}
		if !input.Body.Role.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "unknown role "+string(input.Body.Role), nil)
		}
		a := domain.Actor{
			ID:        input.Body.ID,
			Name:      input.Body.Name,
			Role:      input.Body.Role,
			LOB:       input.Body.LOB,
			CreatedAt: e.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertActor(ctx, a); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Actor `json:"body"`
		}{Body: a}, nil
	})
}

func registerEvents(api huma.API, e *workflow.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent engine events",
	}, func(ctx context.Context, input *struct {
		Limit int   `query:"limit" required:"false"`
		After int64 `query:"after" required:"false"`
	}) (*struct {
		Body EventListResponse `json:"body"`
	}, error) {
		var evs []domain.Event
		var err error
		if input.After > 0 {
			evs, err = e.Repo.EventsAfter(ctx, input.After, input.Limit)
		} else {
			evs, err = e.Repo.LatestEvents(ctx, input.Limit)
		}
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventListResponse `json:"body"`
		}{Body: EventListResponse{Events: evs}}, nil
	})
}
