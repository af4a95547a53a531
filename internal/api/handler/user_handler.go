package handler

import (
	"net/http"

	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common"
	"reservation_app/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

type UserHandler struct {
	userService *service.UserService
	slotService *service.SlotService
	authn       Middleware
}

func NewUserHandler(userService *service.UserService, slotService *service.SlotService, authn Middleware) *UserHandler {
	return &UserHandler{userService: userService, slotService: slotService, authn: authn}
}

func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Use(h.authn)
	r.Get("/me", h.getMe)
	r.Get("/me/slots", h.listMySlots)
	r.Put("/me/password", h.changePassword)
	r.Get("/{userID}", h.getUser)
	r.Patch("/{userID}", h.updateProfile)
}

func (h *UserHandler) getMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.userService.GetMe(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) listMySlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.slotService.ListMySlots(r.Context(), middleware.ClaimsFromContext(r.Context()))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slots)
}

func (h *UserHandler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req service.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	if err := h.userService.ChangePassword(r.Context(), middleware.ClaimsFromContext(r.Context()), req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	user, err := h.userService.GetUser(r.Context(), middleware.ClaimsFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "userID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	var upd model.ProfileUpdate
	if err := decodeJSON(r, &upd); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	user, err := h.userService.UpdateProfile(r.Context(), middleware.ClaimsFromContext(r.Context()), id, upd)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
