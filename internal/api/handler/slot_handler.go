package handler

import (
	"net/http"

	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common"

	"github.com/go-chi/chi/v5"
)

type SlotHandler struct {
	slotService *service.SlotService
	authn       Middleware
}

func NewSlotHandler(slotService *service.SlotService, authn Middleware) *SlotHandler {
	return &SlotHandler{slotService: slotService, authn: authn}
}

func (h *SlotHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listAvailable)
	r.Get("/{slotID}", h.getSlot)

	r.Group(func(private chi.Router) {
		private.Use(h.authn)
		private.Post("/", h.createSlot)
		private.Post("/{slotID}/book", h.bookSlot)
		private.Post("/{slotID}/cancel", h.cancelSlot)
	})
}

func (h *SlotHandler) listAvailable(w http.ResponseWriter, r *http.Request) {
	slots, err := h.slotService.ListAvailable(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slots)
}

func (h *SlotHandler) getSlot(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "slotID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	slot, err := h.slotService.GetSlot(r.Context(), id)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slot)
}

func (h *SlotHandler) createSlot(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSlotRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	slot, err := h.slotService.CreateSlot(r.Context(), middleware.ClaimsFromContext(r.Context()), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, slot)
}

func (h *SlotHandler) bookSlot(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "slotID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	var req service.BookSlotRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	slot, err := h.slotService.BookSlot(r.Context(), middleware.ClaimsFromContext(r.Context()), id, req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slot)
}

func (h *SlotHandler) cancelSlot(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "slotID")
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	slot, err := h.slotService.CancelSlot(r.Context(), middleware.ClaimsFromContext(r.Context()), id)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slot)
}
