package handler

import (
	"net/http"

	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type AdminHandler struct {
	userService *service.UserService
	slotService *service.SlotService
	authn       Middleware
}

func NewAdminHandler(userService *service.UserService, slotService *service.SlotService, authn Middleware) *AdminHandler {
	return &AdminHandler{userService: userService, slotService: slotService, authn: authn}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.authn)
	r.Use(middleware.AdminOnly)

	r.Get("/users", h.listUsers)
	r.Get("/users/search", h.searchUsers)
	r.Put("/users/{userID}/role", h.updateRole)
	r.Put("/users/{userID}/active", h.setActive)
	r.Delete("/users/{userID}", h.deleteUser)

	r.Get("/slots", h.listSlots)
	r.Delete("/slots/{slotID}", h.deleteSlot)
}

func (h *AdminHandler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

func (h *AdminHandler) searchUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.SearchUsers(r.Context(), middleware.ClaimsFromContext(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, users)
}

type updateRoleRequest struct {
	Role model.Role `json:"role"`
}

func (h *AdminHandler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	user, err := h.userService.UpdateRole(r.Context(), middleware.ClaimsFromContext(r.Context()), id, req.Role)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *AdminHandler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	if req.Active == nil {
		common.RespondWithError(w, http.StatusBadRequest, "Field 'active' is required")
		return
	}
	user, err := h.userService.SetActive(r.Context(), middleware.ClaimsFromContext(r.Context()), id, *req.Active)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *AdminHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	if err := h.userService.DeleteUser(r.Context(), middleware.ClaimsFromContext(r.Context()), id); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) listSlots(w http.ResponseWriter, r *http.Request) {
	filter := model.SlotFilter{Status: model.SlotStatus(r.URL.Query().Get("status"))}
	var err error
	if filter.DoctorID, err = int64Query(r, "doctor_id"); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	if filter.UserID, err = int64Query(r, "user_id"); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	slots, err := h.slotService.ListAllSlots(r.Context(), middleware.ClaimsFromContext(r.Context()), filter)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slots)
}

func (h *AdminHandler) deleteSlot(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "slotID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	if err := h.slotService.DeleteSlot(r.Context(), middleware.ClaimsFromContext(r.Context()), id); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
