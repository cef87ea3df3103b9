package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/sangbadpatra/sangbadpatra/internal/observability"
	"github.com/sangbadpatra/sangbadpatra/internal/platform/httpx"
	"github.com/sangbadpatra/sangbadpatra/internal/session"
	"github.com/sangbadpatra/sangbadpatra/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	store     *session.Store
	csrf      *shared.CSRFManager
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, store *session.Store, csrf *shared.CSRFManager, metrics *observability.Metrics) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		store:     store,
		csrf:      csrf,
		metrics:   metrics,
		validator: validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router. Login gets
// its own per-IP rate limit on top of the global one.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/check", h.handleCheck)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, httpx.Envelope{Success: false, Message: "malformed request body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.recordLogin("invalid_request")
		httpx.JSON(w, http.StatusBadRequest, httpx.Envelope{Success: false, Message: "email and password are required"})
		return
	}

	u, token, err := h.service.Login(r.Context(), req.Email, req.Password, r.RemoteAddr, r.UserAgent())
	if err != nil {
		h.recordLogin("rejected")
		httpx.JSON(w, http.StatusUnauthorized, httpx.Envelope{Success: false, Message: "invalid email or password"})
		return
	}

	if err := h.store.Set(r.Context(), w, u, token); err != nil {
		h.logger.Error("persist session", slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, httpx.Envelope{Success: false, Message: "could not establish session"})
		return
	}

	h.recordLogin("success")
	if h.csrf != nil {
		w.Header().Set(shared.CSRFHeader, h.csrf.Token(u.SessionID))
	}
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "login successful", Token: token})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	u := session.UserFromContext(r.Context())
	if u != nil {
		if err := h.service.Logout(r.Context(), u); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	h.store.Clear(r.Context(), w, r)
	httpx.JSON(w, http.StatusOK, httpx.Envelope{Success: true, Message: "logged out"})
}

// handleCheck validates the session and slides its expiry forward, so a
// client polling the endpoint keeps an active session alive.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	u := h.store.Refresh(r.Context(), w, r)
	if u == nil {
		httpx.JSON(w, http.StatusUnauthorized, httpx.StatusEnvelope{Status: "unauthenticated", Message: "no active session"})
		return
	}
	if h.csrf != nil {
		w.Header().Set(shared.CSRFHeader, h.csrf.Token(u.SessionID))
	}
	httpx.JSON(w, http.StatusOK, httpx.StatusEnvelope{Status: "authenticated", Message: "session extended"})
}

func (h *Handler) recordLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.RecordLogin(outcome)
	}
}
