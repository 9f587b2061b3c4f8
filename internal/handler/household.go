package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/dukerupert/kinkeeper/internal/auth"
	"github.com/dukerupert/kinkeeper/internal/resolver"
	"github.com/dukerupert/kinkeeper/internal/store"
)

const maxHouseholdNameLen = 100

type HouseholdHandler struct {
	householdStore *store.HouseholdStore
	profileStore   *store.ProfileStore
	userStore      *store.UserStore
	cache          *resolver.HouseholdCache
	logger         *slog.Logger
}

func NewHouseholdHandler(hs *store.HouseholdStore, ps *store.ProfileStore, us *store.UserStore, cache *resolver.HouseholdCache, logger *slog.Logger) *HouseholdHandler {
	return &HouseholdHandler{
		householdStore: hs,
		profileStore:   ps,
		userStore:      us,
		cache:          cache,
		logger:         logger,
	}
}

type householdRequest struct {
	Name string `json:"name"`
	PIN  string `json:"pin"`
}

func (req *householdRequest) validate() string {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return "household name is required"
	}
	if utf8.RuneCountInString(req.Name) > maxHouseholdNameLen {
		return "household name is too long"
	}
	if !auth.ValidPIN(req.PIN) {
		return auth.ErrInvalidPIN.Error()
	}
	return ""
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	profile, err := h.profileStore.Get(ac.UserID)
	if err != nil {
		h.logger.Error("get profile", "user_id", ac.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}
	if profile.HasHousehold() {
		writeError(w, http.StatusConflict, "leave your current household first")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}

	pinHash, err := auth.HashPIN(req.PIN)
	if err != nil {
		h.logger.Error("hash pin", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}

	household, err := h.householdStore.Create(req.Name, pinHash, user)
	if errors.Is(err, store.ErrHouseholdNameTaken) {
		writeError(w, http.StatusConflict, "a household with this name already exists")
		return
	}
	if err != nil {
		h.logger.Error("create household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create household")
		return
	}

	h.cache.Set(user.ID, household.ID)
	h.logger.Info("household created", "household_id", household.ID, "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"household": household, "route": resolver.RouteDashboard})
}

// Join adds the caller to a household by name and PIN. A wrong name and a
// wrong PIN get the same answer. Members of another household must leave it
// first.
func (h *HouseholdHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	household, pinHash, err := h.householdStore.GetByName(req.Name)
	if err != nil {
		h.logger.Error("find household", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}
	if household == nil || !auth.CheckPIN(pinHash, req.PIN) {
		writeError(w, http.StatusUnauthorized, "could not join the household, check the name and PIN")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	profile, err := h.profileStore.Get(ac.UserID)
	if err != nil {
		h.logger.Error("get profile", "user_id", ac.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}
	if profile.HasHousehold() && *profile.HouseholdID != household.ID {
		writeError(w, http.StatusConflict, "leave your current household first")
		return
	}

	user, err := h.userStore.GetByID(ac.UserID)
	if err != nil || user == nil {
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	if err := h.householdStore.Join(household.ID, user); err != nil {
		h.logger.Error("join household", "household_id", household.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to join household")
		return
	}

	h.cache.Set(user.ID, household.ID)
	h.logger.Info("household joined", "household_id", household.ID, "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]any{"household": household, "route": resolver.RouteDashboard})
}

func (h *HouseholdHandler) Get(w http.ResponseWriter, r *http.Request) {
	householdID := auth.HouseholdID(r.Context())

	household, err := h.householdStore.GetByID(householdID)
	if err != nil {
		h.logger.Error("get household", "household_id", householdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load household")
		return
	}
	if household == nil {
		writeError(w, http.StatusNotFound, "household not found")
		return
	}

	members, err := h.householdStore.ListMembers(householdID)
	if err != nil {
		h.logger.Error("list members", "household_id", householdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load household")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"household": household, "members": members})
}

func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())

	if err := h.householdStore.Leave(ac.HouseholdID, ac.UserID); err != nil {
		h.logger.Error("leave household", "household_id", ac.HouseholdID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to leave household")
		return
	}
	h.cache.Clear(ac.UserID)

	h.logger.Info("household left", "household_id", ac.HouseholdID, "user_id", ac.UserID)
	writeJSON(w, http.StatusOK, map[string]string{"route": resolver.RouteHousehold})
}
