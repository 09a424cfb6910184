package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lisst-auth/internal/backend"
	"lisst-auth/internal/events"
	"lisst-auth/internal/models"
	"lisst-auth/internal/session"
	"lisst-auth/internal/util"
	"lisst-auth/internal/validate"
)

// SessionHandler exposes the auth/session lifecycle over HTTP for the mobile
// shell.
type SessionHandler struct {
	sessions *session.Store
	backend  *backend.Client
	producer *events.Producer
	validate *validator.Validate
	logger   *zap.Logger
}

func NewSessionHandler(sessions *session.Store, be *backend.Client, producer *events.Producer, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		backend:  be,
		producer: producer,
		validate: validator.New(),
		logger:   logger,
	}
}

// Response represents a standard API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

func successResponse(data interface{}, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func errorResponse(err error, message string) Response {
	return Response{Success: false, Error: err.Error(), Message: message}
}

// SignupRequest starts a new account: profile fields are required, OTP is
// issued to the phone.
type SignupRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	Name        string `json:"name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required"`
}

// LoginRequest starts an OTP round for an existing account; no profile
// fields travel with it.
type LoginRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
}

type sessionPayload struct {
	User          *models.UserRecord `json:"user"`
	Loading       bool               `json:"loading"`
	Authenticated bool               `json:"authenticated"`
}

// RegisterRoutes registers the auth and session routes.
func (h *SessionHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.ResendOTP)
	})

	router.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/refresh", h.RefreshSession)
		r.Post("/logout", h.Logout)
		r.Patch("/profile", h.UpdateProfile)
		r.Delete("/account", h.DeleteAccount)
	})

	router.Get("/admin/users", h.ListUsers)
}

// Signup validates profile fields locally, then asks the backend to issue an
// OTP for a new account. Local validation failures never reach the backend.
func (h *SessionHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid signup request")
		return
	}

	phone := validate.FormatPhone(req.PhoneNumber)
	if err := validate.PhoneNumber(phone); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid phone number")
		return
	}
	if err := validate.Email(req.Email); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid email")
		return
	}

	userData := map[string]string{
		"name":  util.SanitizeInput(req.Name),
		"email": req.Email,
	}
	if err := h.backend.SubmitUserData(r.Context(), phone, userData, false); err != nil {
		h.respondWithError(w, http.StatusBadGateway, err, "Failed to start signup")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "OTP sent"))
	h.logger.Info("Signup OTP requested", util.String("phone_number", phone))
}

// Login issues an OTP for an existing account; only the phone number travels.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid login request")
		return
	}

	phone := validate.FormatPhone(req.PhoneNumber)
	if err := validate.PhoneNumber(phone); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid phone number")
		return
	}

	if err := h.backend.SubmitUserData(r.Context(), phone, nil, true); err != nil {
		h.respondWithError(w, http.StatusBadGateway, err, "Failed to start login")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "OTP sent"))
	h.logger.Info("Login OTP requested", util.String("phone_number", phone))
}

// VerifyOTP confirms the code with the backend; on success the returned
// record becomes the current session.
func (h *SessionHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid verification request")
		return
	}

	phone := validate.FormatPhone(req.PhoneNumber)
	if err := validate.PhoneNumber(phone); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid phone number")
		return
	}
	if err := validate.OTP(req.OTP); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid OTP")
		return
	}

	record, err := h.backend.VerifyOTP(r.Context(), phone, req.OTP)
	if err != nil {
		h.respondWithError(w, http.StatusUnauthorized, err, "OTP verification failed")
		return
	}
	h.producer.Emit(r.Context(), events.TypeOTPVerified, phone)

	if err := h.sessions.Login(r.Context(), record); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to start session")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(sessionPayload{
		User:          record,
		Authenticated: record.Authenticated(),
	}, "Phone verified"))
	h.logger.Info("OTP verified",
		util.String("phone_number", phone),
		util.Bool("authenticated", record.Authenticated()),
		util.Duration("duration", time.Since(startTime)),
	)
}

func (h *SessionHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	phone := validate.FormatPhone(req.PhoneNumber)
	if err := validate.PhoneNumber(phone); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid phone number")
		return
	}

	if err := h.backend.ResendOTP(r.Context(), phone); err != nil {
		h.respondWithError(w, http.StatusBadGateway, err, "Failed to resend OTP")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "OTP resent"))
}

// GetSession reports the current session snapshot.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	record := h.sessions.Current()
	h.respondWithJSON(w, http.StatusOK, successResponse(sessionPayload{
		User:          record,
		Loading:       h.sessions.Loading(),
		Authenticated: record.Authenticated(),
	}, ""))
}

// RefreshSession re-fetches the record from the backend. Failures are logged
// by the store and never disturb the cached session, so this always reports
// the current state.
func (h *SessionHandler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	h.sessions.RefreshUser(r.Context())
	h.GetSession(w, r)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context()); err != nil {
		h.respondWithError(w, http.StatusInternalServerError, err, "Failed to logout")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Logged out"))
}

// UpdateProfile forwards a partial update; the backend's full record
// replaces the session.
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var fields map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, "Invalid request body")
		return
	}
	if len(fields) == 0 {
		h.respondWithError(w, http.StatusBadRequest, errors.New("no fields to update"), "Empty update")
		return
	}

	record, err := h.sessions.UpdateProfile(r.Context(), fields)
	if err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to update profile")
		return
	}

	h.respondWithJSON(w, http.StatusOK, successResponse(sessionPayload{
		User:          record,
		Authenticated: record.Authenticated(),
	}, "Profile updated"))
}

func (h *SessionHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.DeleteAccount(r.Context()); err != nil {
		h.respondWithError(w, h.getStatusCode(err), err, "Failed to delete account")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Account deleted"))
}

// ListUsers proxies the admin listing endpoint.
func (h *SessionHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.backend.GetAllUsers(r.Context())
	if err != nil {
		h.respondWithError(w, http.StatusBadGateway, err, "Failed to list users")
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(users, ""))
}

func (h *SessionHandler) getStatusCode(err error) int {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, backend.ErrMissingUser):
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func (h *SessionHandler) respondWithJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", util.ErrorField(err))
	}
}

func (h *SessionHandler) respondWithError(w http.ResponseWriter, status int, err error, message string) {
	h.logger.Warn("Request failed",
		util.Int("status", status),
		util.String("message", message),
		util.ErrorField(err),
	)
	h.respondWithJSON(w, status, errorResponse(err, message))
}
