package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/push"
	"github.com/dukerupert/kinkeeper/internal/store"
)

type PushHandler struct {
	pushStore *store.PushStore
	service   *push.Service
	logger    *slog.Logger
}

// NewPushHandler returns a handler whose routes answer 404 when svc is nil.
func NewPushHandler(ps *store.PushStore, svc *push.Service, logger *slog.Logger) *PushHandler {
	return &PushHandler{pushStore: ps, service: svc, logger: logger}
}

type subscribeRequest struct {
	Endpoint   string `json:"endpoint"`
	P256dh     string `json:"p256dh"`
	Auth       string `json:"auth"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) enabled(w http.ResponseWriter) bool {
	if h.service == nil {
		writeError(w, http.StatusNotFound, "push notifications are not configured")
		return false
	}
	return true
}

// VAPIDKey handles GET /api/push/vapid-key
func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// Subscribe handles POST /api/push/subscriptions
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	var req subscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" || req.P256dh == "" || req.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint, p256dh and auth are required")
		return
	}
	if u, err := url.Parse(req.Endpoint); err != nil || u.Scheme != "https" || u.Host == "" {
		writeError(w, http.StatusBadRequest, "endpoint must be an https URL")
		return
	}

	ctx := r.Context()
	sub, err := h.pushStore.Subscribe(auth.UserID(ctx), auth.HouseholdID(ctx), req.Endpoint, req.P256dh, req.Auth, strings.TrimSpace(req.DeviceName))
	if err != nil {
		h.logger.Error("save push subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// List handles GET /api/push/subscriptions
func (h *PushHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	ctx := r.Context()
	subs, err := h.pushStore.ListByUser(auth.HouseholdID(ctx), auth.UserID(ctx))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(subs))
}

// Unsubscribe handles DELETE /api/push/subscriptions/{id}
func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx := r.Context()
	ok, err := h.pushStore.Delete(auth.HouseholdID(ctx), auth.UserID(ctx), id)
	if err != nil {
		h.logger.Error("delete push subscription", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete subscription")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Test handles POST /api/push/test by notifying the caller's own devices.
func (h *PushHandler) Test(w http.ResponseWriter, r *http.Request) {
	if !h.enabled(w) {
		return
	}
	ctx := r.Context()
	subs, err := h.pushStore.ListByUser(auth.HouseholdID(ctx), auth.UserID(ctx))
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}

	payload := push.Payload{Title: "KinKeeper", Body: "Notifications are working.", URL: "/dashboard", Tag: "test"}
	sent := 0
	for i := range subs {
		if err := h.service.Send(ctx, &subs[i], payload); err != nil {
			h.logger.Warn("test push", "id", subs[i].ID, "error", err)
			continue
		}
		sent++
	}
	writeJSON(w, http.StatusOK, map[string]int{"sent": sent})
}
