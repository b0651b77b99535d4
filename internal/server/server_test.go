package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"go.uber.org/zap"

	"caseline/internal/db"
	"caseline/internal/domain"
	"caseline/internal/migrate"
	"caseline/internal/workflow"
)

const testJWTSecret = "test-secret"

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Close() { s.close() }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := workflow.NewEngine(conn, zap.NewNop())
	e.Now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }
	handler, err := New(Config{
		Engine: e,
		Auth:   AuthConfig{JWTSecret: testJWTSecret},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	ts := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	t.Cleanup(ts.Close)
	return ts
}

func tokenFor(t *testing.T, actorID string, role domain.Role) string {
	t.Helper()
	token, err := IssueJWT(testJWTSecret, actorID, role)
	if err != nil {
		t.Fatalf("issue jwt: %v", err)
	}
	return token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := s.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, _ := io.ReadAll(res.Body)
	var out map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, data, err)
		}
	}
	return res.StatusCode, out
}

func TestHealthRequiresNoAuth(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/v1/health", "", nil)
	if status != http.StatusOK {
		t.Fatalf("health: %d %v", status, body)
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(t, http.MethodGet, "/v1/cases", "", nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list: %d %v", status, body)
	}
}

func TestCaseLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)
	ana := tokenFor(t, "ana-1", domain.RoleAnalyst)

	status, created := ts.do(t, http.MethodPost, "/v1/cases", mgr, map[string]any{
		"client_id": "client-7",
		"priority":  "high",
	})
	if status != http.StatusCreated {
		t.Fatalf("create: %d %v", status, created)
	}
	id := created["id"].(string)

	status, body := ts.do(t, http.MethodPost, "/v1/cases/"+id+"/triage", mgr, map[string]any{})
	if status != http.StatusOK || body["status"] != "unassigned" {
		t.Fatalf("triage: %d %v", status, body)
	}
	status, body = ts.do(t, http.MethodPost, "/v1/cases/"+id+"/assign", mgr, map[string]any{"assignee": "ana-1"})
	if status != http.StatusOK || body["assignee"] != "ana-1" {
		t.Fatalf("assign: %d %v", status, body)
	}
	status, body = ts.do(t, http.MethodPost, "/v1/cases/"+id+"/start", ana, map[string]any{})
	if status != http.StatusOK || body["status"] != "in-progress" {
		t.Fatalf("start: %d %v", status, body)
	}
	status, body = ts.do(t, http.MethodPost, "/v1/cases/"+id+"/complete", ana, map[string]any{"disposition": "no_factors"})
	if status != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("complete: %d %v", status, body)
	}

	status, history := ts.do(t, http.MethodGet, "/v1/cases/"+id+"/history", mgr, nil)
	if status != http.StatusOK {
		t.Fatalf("history: %d %v", status, history)
	}
	if entries := history["entries"].([]any); len(entries) != 4 {
		t.Fatalf("history entries: %d", len(entries))
	}
}

func TestForbiddenTransitionEnvelope(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)
	viewer := tokenFor(t, "view-1", domain.RoleViewOnly)

	_, created := ts.do(t, http.MethodPost, "/v1/cases", mgr, map[string]any{"client_id": "client-7"})
	id := created["id"].(string)

	status, body := ts.do(t, http.MethodPost, "/v1/cases/"+id+"/triage", viewer, map[string]any{})
	if status != http.StatusForbidden {
		t.Fatalf("view-only triage: %d %v", status, body)
	}
	envelope := body["error"].(map[string]any)
	if envelope["code"] != "forbidden" {
		t.Fatalf("error code: %v", envelope)
	}
}

func TestStaleExpectedVersionReturns409(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)

	_, created := ts.do(t, http.MethodPost, "/v1/cases", mgr, map[string]any{"client_id": "client-7"})
	id := created["id"].(string)
	version := int(created["version"].(float64))

	// Another caller moves the case after our read.
	ts.do(t, http.MethodPost, "/v1/cases/"+id+"/triage", mgr, map[string]any{})

	status, body := ts.do(t, http.MethodPost, "/v1/cases/"+id+"/assign", mgr, map[string]any{
		"assignee":         "ana-1",
		"expected_version": version,
	})
	if status != http.StatusConflict {
		t.Fatalf("stale assign: %d %v", status, body)
	}
	if body["error"].(map[string]any)["code"] != "conflict" {
		t.Fatalf("error code: %v", body)
	}

	// Retrying with fresh state succeeds.
	status, body = ts.do(t, http.MethodPost, "/v1/cases/"+id+"/assign", mgr, map[string]any{
		"assignee":         "ana-1",
		"expected_version": version + 1,
	})
	if status != http.StatusOK || body["assignee"] != "ana-1" {
		t.Fatalf("fresh assign: %d %v", status, body)
	}
}

func TestUnknownCaseReturns404(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)
	status, body := ts.do(t, http.MethodGet, "/v1/cases/nope", mgr, nil)
	if status != http.StatusNotFound {
		t.Fatalf("missing case: %d %v", status, body)
	}
}

func TestBulkPartialFailureOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)

	var ids []string
	for i := 0; i < 3; i++ {
		_, created := ts.do(t, http.MethodPost, "/v1/cases", mgr, map[string]any{
			"client_id": fmt.Sprintf("client-%d", i),
		})
		id := created["id"].(string)
		ts.do(t, http.MethodPost, "/v1/cases/"+id+"/triage", mgr, map[string]any{})
		ids = append(ids, id)
	}
	ids = append(ids, "missing-case")

	status, body := ts.do(t, http.MethodPost, "/v1/cases/bulk", mgr, map[string]any{
		"operation": "reassign",
		"case_ids":  ids,
		"assignee":  "ana-1",
	})
	if status != http.StatusOK {
		t.Fatalf("bulk: %d %v", status, body)
	}
	if body["succeeded"].(float64) != 3 || body["failed"].(float64) != 1 {
		t.Fatalf("bulk counts: %v", body)
	}
	outcomes := body["outcomes"].([]any)
	if len(outcomes) != 4 {
		t.Fatalf("outcomes: %d", len(outcomes))
	}
	last := outcomes[3].(map[string]any)
	if last["ok"].(bool) {
		t.Fatalf("missing case succeeded: %v", last)
	}
	if last["error"].(map[string]any)["code"] != "not_found" {
		t.Fatalf("missing case error: %v", last)
	}
}

func TestQueueEndpoint(t *testing.T) {
	ts := newTestServer(t)
	mgr := tokenFor(t, "mgr-1", domain.RoleManager)

	_, created := ts.do(t, http.MethodPost, "/v1/cases", mgr, map[string]any{"client_id": "client-7"})
	id := created["id"].(string)
	ts.do(t, http.MethodPost, "/v1/cases/"+id+"/triage", mgr, map[string]any{})
	ts.do(t, http.MethodPost, "/v1/cases/"+id+"/assign", mgr, map[string]any{"assignee": "ana-1"})

	status, body := ts.do(t, http.MethodGet, "/v1/queues/active", mgr, nil)
	if status != http.StatusOK {
		t.Fatalf("active queue: %d %v", status, body)
	}
	items := body["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("active items: %d", len(items))
	}

	status, body = ts.do(t, http.MethodGet, "/v1/queues/returned", mgr, nil)
	if status != http.StatusOK {
		t.Fatalf("returned queue: %d %v", status, body)
	}
	if items := body["items"].([]any); len(items) != 0 {
		t.Fatalf("returned items: %d", len(items))
	}
}

func TestReasonsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ana := tokenFor(t, "ana-1", domain.RoleAnalyst)

	status, body := ts.do(t, http.MethodGet, "/v1/reasons", ana, nil)
	if status != http.StatusOK {
		t.Fatalf("reasons: %d %v", status, body)
	}
	if reasons := body["reasons"].([]any); len(reasons) != 11 {
		t.Fatalf("reason count: %d", len(reasons))
	}

	status, body = ts.do(t, http.MethodGet, "/v1/reasons?escalation_type=second-line", ana, nil)
	if status != http.StatusOK {
		t.Fatalf("filtered reasons: %d %v", status, body)
	}
	for _, r := range body["reasons"].([]any) {
		if r.(map[string]any)["target_role"] != "second-line-reviewer" {
			t.Fatalf("filter leaked: %v", r)
		}
	}
}
