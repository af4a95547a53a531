package handler

import (
	"net/http"

	"reservation_app/internal/app/service"
	"reservation_app/internal/common"

	"github.com/go-chi/chi/v5"
)

type DoctorHandler struct {
	doctorService *service.DoctorService
}

func NewDoctorHandler(doctorService *service.DoctorService) *DoctorHandler {
	return &DoctorHandler{doctorService: doctorService}
}

func (h *DoctorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.listDoctors)
	r.Get("/{doctorSlug}/slots", h.listDoctorSlots)
}

func (h *DoctorHandler) listDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.doctorService.ListDoctors(r.Context())
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, doctors)
}

func (h *DoctorHandler) listDoctorSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.doctorService.ListDoctorSlots(r.Context(), chi.URLParam(r, "doctorSlug"))
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, slots)
}
