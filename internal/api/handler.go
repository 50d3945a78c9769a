// Package api exposes the orchestrator and the notification inbox as a JSON
// HTTP API. Handlers only record a response or an error; the cerr chi
// middleware encodes it.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/kazz187/workguild/internal/config"
	"github.com/kazz187/workguild/internal/notification"
	"github.com/kazz187/workguild/internal/orchestrator"
	"github.com/kazz187/workguild/internal/pushsubscription"
	"github.com/kazz187/workguild/internal/scoring"
	"github.com/kazz187/workguild/internal/skill"
	"github.com/kazz187/workguild/internal/user"
	"github.com/kazz187/workguild/internal/workload"
	"github.com/kazz187/workguild/pkg/cerr"
	"github.com/kazz187/workguild/pkg/clog"
)

type Handler struct {
	orch             *orchestrator.Orchestrator
	tracker          *workload.Tracker
	userRepo         user.Repository
	skillRepo        skill.Repository
	notificationRepo notification.Repository
	pushSubRepo      pushsubscription.Repository
	vapid            *config.VAPIDEnv
}

func NewHandler(
	orch *orchestrator.Orchestrator,
	tracker *workload.Tracker,
	userRepo user.Repository,
	skillRepo skill.Repository,
	notificationRepo notification.Repository,
	pushSubRepo pushsubscription.Repository,
	vapid *config.VAPIDEnv,
) *Handler {
	return &Handler{
		orch:             orch,
		tracker:          tracker,
		userRepo:         userRepo,
		skillRepo:        skillRepo,
		notificationRepo: notificationRepo,
		pushSubRepo:      pushSubRepo,
		vapid:            vapid,
	}
}

// Routes mounts the API below r. r must already carry the cerr JSON
// middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/assignments/run", h.runAssignments)
	r.Get("/assignments/tasks/{taskID}/candidate", h.bestCandidate)
	r.Post("/redistributions/run", h.runRedistribution)
	r.Get("/stats", h.stats)
	r.Post("/alerts/check", h.checkAlerts)
	r.Post("/alerts/cleanup", h.cleanupAlerts)
	r.Put("/tasks/{taskID}/assignee", h.setAssignee)

	r.Get("/skills", h.listSkills)
	r.Post("/skills", h.createSkill)

	r.Route("/users/{userID}", func(r chi.Router) {
		r.Put("/skills/{skillID}", h.setSkillLevel)
		r.Get("/workload", h.userWorkload)
		r.Get("/notifications", h.listNotifications)
		r.Post("/push-subscriptions", h.registerPushSubscription)
	})
	r.Post("/notifications/{notificationID}/read", h.markRead)
	r.Delete("/push-subscriptions/{subscriptionID}", h.deletePushSubscription)
	r.Get("/push/vapid-public-key", h.vapidPublicKey)
}

func respond(ctx context.Context, v any, err error) {
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, v)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return cerr.NewError(cerr.InvalidArgument, "malformed request body", err)
	}
	return nil
}

func (h *Handler) runAssignments(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.AssignAll(r.Context())
	respond(r.Context(), res, err)
}

func (h *Handler) bestCandidate(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	clog.AddAttribute(r.Context(), "task_id", taskID)
	res, err := h.orch.FindBestCandidate(r.Context(), taskID)
	respond(r.Context(), res, err)
}

func (h *Handler) runRedistribution(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.Redistribute(r.Context())
	respond(r.Context(), res, err)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.Stats(r.Context())
	respond(r.Context(), res, err)
}

type alertsResponse struct {
	Created       int                          `json:"created"`
	Notifications []*notification.Notification `json:"notifications"`
}

func (h *Handler) checkAlerts(w http.ResponseWriter, r *http.Request) {
	created, err := h.orch.CheckAlerts(r.Context())
	if created == nil {
		created = []*notification.Notification{}
	}
	respond(r.Context(), &alertsResponse{Created: len(created), Notifications: created}, err)
}

type cleanupResponse struct {
	Removed int `json:"removed"`
}

func (h *Handler) cleanupAlerts(w http.ResponseWriter, r *http.Request) {
	removed, err := h.orch.CleanupAlerts(r.Context())
	respond(r.Context(), &cleanupResponse{Removed: removed}, err)
}

type setAssigneeRequest struct {
	// AssigneeID is a pointer so a missing field differs from an explicit
	// unassign ("").
	AssigneeID *string `json:"assigneeId"`
}

func (h *Handler) setAssignee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	taskID := chi.URLParam(r, "taskID")
	clog.AddAttribute(ctx, "task_id", taskID)

	var req setAssigneeRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.AssigneeID == nil {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid request", nil).
			AddViolation("assigneeId", "is required; use an empty string to unassign"))
		return
	}
	t, err := h.orch.ReassignTask(ctx, taskID, *req.AssigneeID)
	respond(ctx, t, err)
}

func (h *Handler) listSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := h.skillRepo.List(r.Context())
	if skills == nil {
		skills = []*skill.Skill{}
	}
	respond(r.Context(), skills, err)
}

type createSkillRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) createSkill(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req createSkillRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Name == "" {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid request", nil).AddViolation("name", "is required"))
		return
	}
	now := time.Now()
	sk := &skill.Skill{
		ID:          ulid.Make().String(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.skillRepo.Create(ctx, sk); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, sk)
}

type skillLevelRequest struct {
	Level int `json:"level"`
}

// setSkillLevel records a user's proficiency; level 0 removes the skill.
func (h *Handler) setSkillLevel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	skillID := chi.URLParam(r, "skillID")
	var req skillLevelRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Level < 0 || req.Level > scoring.MaxSkillLevel {
		cerr.SetJSONError(ctx, cerr.NewError(cerr.InvalidArgument, "invalid request", nil).
			AddViolation("level", "must be between 0 and 5"))
		return
	}
	if _, err := h.skillRepo.Get(ctx, skillID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	u, err := h.userRepo.Get(ctx, chi.URLParam(r, "userID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	if req.Level == 0 {
		delete(u.SkillLevels, skillID)
	} else {
		if u.SkillLevels == nil {
			u.SkillLevels = make(map[string]int)
		}
		u.SkillLevels[skillID] = req.Level
	}
	u.UpdatedAt = time.Now()
	if err := h.userRepo.Update(ctx, u); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, u)
}

func (h *Handler) userWorkload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	if _, err := h.userRepo.Get(ctx, userID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	wl, err := h.tracker.Current(ctx, userID)
	respond(ctx, wl, err)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	filter := notification.Filter{UserID: chi.URLParam(r, "userID")}

	invalid := cerr.NewError(cerr.InvalidArgument, "invalid query", nil)
	if v := q.Get("unread"); v != "" {
		unread, err := strconv.ParseBool(v)
		if err != nil {
			invalid.AddViolation("unread", "must be a boolean")
		}
		filter.UnreadOnly = unread
	}
	for _, v := range q["type"] {
		typ := notification.Type(v)
		if !slices.Contains(notification.AlertTypes, typ) {
			invalid.AddViolation("type", "unknown notification type "+strconv.Quote(v))
			continue
		}
		filter.Types = append(filter.Types, typ)
	}
	if len(invalid.Details) > 0 {
		cerr.SetJSONError(ctx, invalid)
		return
	}

	ns, err := h.notificationRepo.List(ctx, filter)
	if ns == nil {
		ns = []*notification.Notification{}
	}
	respond(ctx, ns, err)
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.notificationRepo.MarkRead(r.Context(), chi.URLParam(r, "notificationID"))
	respond(r.Context(), n, err)
}

type pushSubscriptionRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dhKey string `json:"p256dhKey"`
	AuthKey   string `json:"authKey"`
}

func (h *Handler) registerPushSubscription(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")
	var req pushSubscriptionRequest
	if err := decode(r, &req); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	invalid := cerr.NewError(cerr.InvalidArgument, "invalid request", nil)
	if req.Endpoint == "" {
		invalid.AddViolation("endpoint", "is required")
	}
	if req.P256dhKey == "" {
		invalid.AddViolation("p256dhKey", "is required")
	}
	if req.AuthKey == "" {
		invalid.AddViolation("authKey", "is required")
	}
	if len(invalid.Details) > 0 {
		cerr.SetJSONError(ctx, invalid)
		return
	}
	if _, err := h.userRepo.Get(ctx, userID); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	sub := &pushsubscription.Subscription{
		ID:        ulid.Make().String(),
		UserID:    userID,
		Endpoint:  req.Endpoint,
		P256dhKey: req.P256dhKey,
		AuthKey:   req.AuthKey,
		CreatedAt: time.Now(),
	}
	if err := h.pushSubRepo.Create(ctx, sub); err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, sub)
}

func (h *Handler) deletePushSubscription(w http.ResponseWriter, r *http.Request) {
	err := h.pushSubRepo.Delete(r.Context(), chi.URLParam(r, "subscriptionID"))
	respond(r.Context(), struct{}{}, err)
}

type vapidKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

func (h *Handler) vapidPublicKey(w http.ResponseWriter, r *http.Request) {
	if h.vapid == nil || h.vapid.PublicKey == "" {
		cerr.SetNewJSONError(r.Context(), cerr.FailedPrecondition, "VAPID keys not configured", nil)
		return
	}
	cerr.SetJSONResponse(r.Context(), &vapidKeyResponse{PublicKey: h.vapid.PublicKey})
}
