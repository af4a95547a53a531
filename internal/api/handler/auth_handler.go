package handler

import (
	"net/http"

	"reservation_app/internal/api/middleware"
	"reservation_app/internal/app/service"
	"reservation_app/internal/common"

	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	authService *service.AuthService
	authn       Middleware
	limit       Middleware
}

func NewAuthHandler(authService *service.AuthService, authn, limit Middleware) *AuthHandler {
	return &AuthHandler{authService: authService, authn: authn, limit: limit}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Group(func(public chi.Router) {
		if h.limit != nil {
			public.Use(h.limit)
		}
		public.Post("/signup", h.signup)
		public.Post("/login", h.login)
	})
	r.Group(func(private chi.Router) {
		private.Use(h.authn)
		private.Post("/verify-email/request", h.requestVerification)
		private.Post("/verify-email/confirm", h.confirmVerification)
	})
}

func (h *AuthHandler) signup(w http.ResponseWriter, r *http.Request) {
	var req service.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}

	resp, err := h.authService.Register(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, resp)
}

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	resp, err := h.authService.Login(r.Context(), req)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) requestVerification(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if err := h.authService.RequestEmailVerification(r.Context(), claims); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Verification code sent"})
}

type confirmVerificationRequest struct {
	Code string `json:"code"`
}

func (h *AuthHandler) confirmVerification(w http.ResponseWriter, r *http.Request) {
	var req confirmVerificationRequest
	if err := decodeJSON(r, &req); err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	user, err := h.authService.ConfirmEmailVerification(r.Context(), middleware.ClaimsFromContext(r.Context()), req.Code)
	if err != nil {
		common.RespondWithDomainError(w, err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, user)
}
