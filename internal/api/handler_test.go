package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/workguild/internal/alert"
	"github.com/kazz187/workguild/internal/assignment"
	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/eventbus"
	"github.com/kazz187/workguild/internal/metrics"
	"github.com/kazz187/workguild/internal/notification"
	notificationrepo "github.com/kazz187/workguild/internal/notification/repositoryimpl"
	"github.com/kazz187/workguild/internal/orchestrator"
	projectrepo "github.com/kazz187/workguild/internal/project/repositoryimpl"
	"github.com/kazz187/workguild/internal/pushsubscription"
	pushrepo "github.com/kazz187/workguild/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/workguild/internal/scoring"
	skillrepo "github.com/kazz187/workguild/internal/skill/repositoryimpl"
	"github.com/kazz187/workguild/internal/task"
	taskrepo "github.com/kazz187/workguild/internal/task/repositoryimpl"
	"github.com/kazz187/workguild/internal/user"
	userrepo "github.com/kazz187/workguild/internal/user/repositoryimpl"
	"github.com/kazz187/workguild/internal/workload"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/storage"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	tasks         task.Repository
	users         user.Repository
	notifications notification.Repository
	subs          pushsubscription.Repository
	router        http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	f := &fixture{
		tasks:         taskrepo.NewYAMLRepository(s),
		users:         userrepo.NewYAMLRepository(s),
		notifications: notificationrepo.NewYAMLRepository(s),
		subs:          pushrepo.NewYAMLRepository(s),
	}
	clock := func() time.Time { return fixedNow }
	noRetry := retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond}
	policy := workload.DefaultPolicy()
	engine := assignment.NewEngine(f.tasks, f.users, scoring.NewScorer(scoring.DefaultConfig()),
		assignment.WithClock(clock), assignment.WithRetryConfig(noRetry))
	alerts := alert.NewManager(f.users, f.tasks, projectrepo.NewYAMLRepository(s), f.notifications, policy,
		alert.WithClock(clock), alert.WithLocation(time.UTC), alert.WithRetryConfig(noRetry))
	orch := orchestrator.New(eventbus.New(), engine, alerts, f.tasks, f.users, metrics.New(), orchestrator.Schedule{},
		orchestrator.WithClock(clock))
	h := NewHandler(orch, workload.NewTracker(f.tasks, policy), f.users, skillrepo.NewYAMLRepository(s), f.notifications, f.subs,
		&config.VAPIDEnv{PublicKey: "BPub"})

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(cerr.NewConvertConnectErrorChiMiddleware())
		h.Routes(r)
	})
	f.router = r

	ctx := context.Background()
	for _, u := range []*user.User{
		{ID: "boss", Name: "Boss", Capabilities: user.Manager},
		{ID: "u1", Name: "Alice", Email: "alice@example.com", Capabilities: user.Collaborator, SkillLevels: map[string]int{"go": 5}},
		{ID: "pm", Name: "Pat", Capabilities: user.ProjectManager},
	} {
		require.NoError(t, f.users.Create(ctx, u))
	}
	return f
}

func (f *fixture) addTask(t *testing.T, tk *task.Task) {
	t.Helper()
	if tk.Status == "" {
		tk.Status = task.StatusTodo
	}
	require.NoError(t, f.tasks.Create(context.Background(), tk))
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	var out map[string]any
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRunAssignments(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", Title: "API", RequiredSkillIDs: []string{"go"}, EstimatedHours: 5})

	rec, body := f.do(t, http.MethodPost, "/api/assignments/run", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["assigned"])
	assert.EqualValues(t, 0, body["failed"])

	details := body["details"].([]any)
	require.Len(t, details, 1)
	assert.Equal(t, "Alice", details[0].(map[string]any)["assignedTo"])
}

func TestBestCandidate(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", Title: "API", RequiredSkillIDs: []string{"go"}, EstimatedHours: 5})

	rec, body := f.do(t, http.MethodGet, "/api/assignments/tasks/t1/candidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["found"])
	assert.Equal(t, "u1", body["userId"])

	rec, body = f.do(t, http.MethodGet, "/api/assignments/tasks/missing/candidate", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["code"])
}

func TestSetAssignee(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", Title: "API", EstimatedHours: 5, AssigneeID: "boss", IsAutoAssigned: true})

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "malformed", body: `{`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "missing field", body: `{}`, status: http.StatusBadRequest, code: "invalid_argument"},
		{name: "not assignable", body: `{"assigneeId":"pm"}`, status: http.StatusPreconditionFailed, code: "failed_precondition"},
		{name: "unknown user", body: `{"assigneeId":"ghost"}`, status: http.StatusNotFound, code: "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := f.do(t, http.MethodPut, "/api/tasks/t1/assignee", tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, body["code"])
		})
	}

	rec, body := f.do(t, http.MethodPut, "/api/tasks/t1/assignee", `{"assigneeId":"u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["assigneeId"])
	assert.Equal(t, false, body["isAutoAssigned"])
}

func TestSetAssignee_MissingFieldViolation(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", EstimatedHours: 1})

	_, body := f.do(t, http.MethodPut, "/api/tasks/t1/assignee", `{}`)
	violations := body["violations"].([]any)
	require.Len(t, violations, 1)
	assert.Equal(t, "assigneeId", violations[0].(map[string]any)["field"])
}

func TestAlertsAndInbox(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", Title: "Big", EstimatedHours: 36, AssigneeID: "u1"})

	rec, body := f.do(t, http.MethodPost, "/api/alerts/check", "")
	require.Equal(t, http.StatusOK, rec.Code)
	// Both supervisors hear about Alice.
	assert.EqualValues(t, 2, body["created"])

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/boss/notifications?unread=true&type=workload_alert", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var inbox []*notification.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox, 1)
	assert.Equal(t, notification.PriorityHigh, inbox[0].Priority)

	rec, body = f.do(t, http.MethodPost, "/api/notifications/"+inbox[0].ID+"/read", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["isRead"])

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users/boss/notifications?unread=true", nil))
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec, body = f.do(t, http.MethodGet, "/api/users/boss/notifications?type=bogus", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", body["code"])

	rec, body = f.do(t, http.MethodPost, "/api/alerts/cleanup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["removed"])
}

func TestUserWorkloadAndStats(t *testing.T) {
	f := newFixture(t)
	f.addTask(t, &task.Task{ID: "t1", EstimatedHours: 20, AssigneeID: "u1"})

	rec, body := f.do(t, http.MethodGet, "/api/users/u1/workload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 20, body["currentWeekHours"])
	assert.EqualValues(t, 50, body["utilizationPercentage"])

	rec, _ = f.do(t, http.MethodGet, "/api/users/ghost/workload", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, body["unassignedTasks"])
}

func TestPushSubscriptions(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/users/boss/push-subscriptions", `{"endpoint":"https://push.example/x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, body["violations"], 2)

	rec, body = f.do(t, http.MethodPost, "/api/users/boss/push-subscriptions",
		`{"endpoint":"https://push.example/x","p256dhKey":"k","authKey":"a"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body, "authKey")
	id := body["id"].(string)

	subs, err := f.subs.ListByUser(context.Background(), "boss")
	require.NoError(t, err)
	require.Len(t, subs, 1)

	rec, _ = f.do(t, http.MethodDelete, "/api/push-subscriptions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	subs, err = f.subs.ListByUser(context.Background(), "boss")
	require.NoError(t, err)
	assert.Empty(t, subs)

	rec, body = f.do(t, http.MethodGet, "/api/push/vapid-public-key", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BPub", body["publicKey"])
}

func TestSkills(t *testing.T) {
	f := newFixture(t)

	rec, body := f.do(t, http.MethodPost, "/api/skills", `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", body["code"])

	rec, body = f.do(t, http.MethodPost, "/api/skills", `{"name":"Rust"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rustID := body["id"].(string)

	rec, body = f.do(t, http.MethodPost, "/api/skills", `{"name":"rust"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", body["code"])

	rec, _ = f.do(t, http.MethodPut, "/api/users/u1/skills/"+rustID, `{"level":9}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = f.do(t, http.MethodPut, "/api/users/u1/skills/unknown", `{"level":4}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body = f.do(t, http.MethodPut, "/api/users/u1/skills/"+rustID, `{"level":4}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 4, body["skillLevels"].(map[string]any)[rustID])
	assert.Equal(t, []any{"collaborator"}, body["capabilities"])

	// The new level feeds the skill matcher.
	f.addTask(t, &task.Task{ID: "t1", Title: "FFI", RequiredSkillIDs: []string{rustID}, EstimatedHours: 2})
	rec, body = f.do(t, http.MethodGet, "/api/assignments/tasks/t1/candidate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", body["userId"])

	rec, body = f.do(t, http.MethodPut, "/api/users/u1/skills/"+rustID, `{"level":0}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, body["skillLevels"].(map[string]any), rustID)
}
