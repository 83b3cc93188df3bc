package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sandeepkv93/chat-session-client/internal/authapi"
	"github.com/sandeepkv93/chat-session-client/internal/domain"
	"github.com/sandeepkv93/chat-session-client/internal/guard"
	"github.com/sandeepkv93/chat-session-client/internal/http/middleware"
	"github.com/sandeepkv93/chat-session-client/internal/http/response"
	"github.com/sandeepkv93/chat-session-client/internal/security"
	"github.com/sandeepkv93/chat-session-client/internal/service"
)

// SessionManager is the part of service.SessionManager the view host drives.
type SessionManager interface {
	guard.Source
	Login(ctx context.Context, creds domain.Credentials) (*domain.SessionRecord, error)
	Logout(ctx context.Context)
	Register(ctx context.Context, reg domain.Registration) (map[string]any, error)
	UpdateProfile(ctx context.Context, updates map[string]any) (*domain.SessionRecord, error)
	VerifyToken(ctx context.Context) error
	RefreshToken(ctx context.Context) (string, error)
}

type SessionHandler struct {
	manager SessionManager
	policy  guard.Policy
	views   *views
	logger  *slog.Logger
}

func NewSessionHandler(manager SessionManager, policy guard.Policy, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{manager: manager, policy: policy, views: newViews(logger), logger: logger}
}

func (h *SessionHandler) Landing(w http.ResponseWriter, r *http.Request) {
	snap := h.manager.Snapshot()
	data := h.page(w, r, "Welcome", snap)
	data.Redirect = safeRedirect(r.URL.Query().Get("redirect"), "")
	if r.URL.Query().Get("registered") == "1" {
		data.Notice = "Account created. You can log in now."
	}
	h.views.render(w, http.StatusOK, "landing", data)
}

func (h *SessionHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.page(w, r, "Log in", h.manager.Snapshot())
	data.Redirect = safeRedirect(r.URL.Query().Get("redirect"), "")
	h.views.render(w, http.StatusOK, "login", data)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	creds := domain.Credentials{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	target := safeRedirect(r.PostFormValue("redirect"), h.policy.HomeRoute)
	if _, err := h.manager.Login(r.Context(), creds); err != nil {
		h.logger.Info("login rejected", "error", err)
		data := h.page(w, r, "Log in", h.manager.Snapshot())
		data.Email = creds.Email
		data.Redirect = r.PostFormValue("redirect")
		data.Error = userMessage(err, "Login failed")
		h.views.render(w, statusFor(err), "login", data)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (h *SessionHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, http.StatusOK, "register", h.page(w, r, "Create account", h.manager.Snapshot()))
}

func (h *SessionHandler) Register(w http.ResponseWriter, r *http.Request) {
	reg := domain.Registration{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	if _, err := h.manager.Register(r.Context(), reg); err != nil {
		data := h.page(w, r, "Create account", h.manager.Snapshot())
		data.Name = reg.Name
		data.Email = reg.Email
		data.Error = userMessage(err, "Registration failed")
		h.views.render(w, statusFor(err), "register", data)
		return
	}
	http.Redirect(w, r, h.policy.LandingRoute+"?registered=1", http.StatusSeeOther)
}

func (h *SessionHandler) Chat(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(r)
	data := h.page(w, r, "Chat", snap)
	if snap.User != nil {
		data.SessionID = snap.User.SessionID
	}
	data.State = snap.State.String()
	h.views.render(w, http.StatusOK, "chat", data)
}

func (h *SessionHandler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	data := h.page(w, r, "Profile", h.snapshot(r))
	if r.URL.Query().Get("saved") == "1" {
		data.Notice = "Profile saved."
	}
	h.views.render(w, http.StatusOK, "profile", data)
}

func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PostFormValue("name"))
	if name == "" {
		data := h.page(w, r, "Profile", h.snapshot(r))
		data.Error = "Name is required"
		h.views.render(w, http.StatusBadRequest, "profile", data)
		return
	}
	if _, err := h.manager.UpdateProfile(r.Context(), map[string]any{"name": name}); err != nil {
		data := h.page(w, r, "Profile", h.manager.Snapshot())
		data.Name = name
		data.Error = userMessage(err, "Profile update failed")
		h.views.render(w, statusFor(err), "profile", data)
		return
	}
	http.Redirect(w, r, r.URL.Path+"?saved=1", http.StatusSeeOther)
}

// LogoutForm ends the session from the page header form.
func (h *SessionHandler) LogoutForm(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout(r.Context())
	http.Redirect(w, r, h.policy.LandingRoute, http.StatusSeeOther)
}

func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, sessionView(h.manager.Snapshot()))
}

func (h *SessionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	err := h.manager.VerifyToken(r.Context())
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, sessionView(h.manager.Snapshot()))
	case errors.Is(err, domain.ErrNoCredential):
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoSession, err.Error(), nil)
	case errors.Is(err, domain.ErrSessionExpired):
		response.Error(w, r, http.StatusUnauthorized, response.CodeSessionExpired, domain.ErrSessionExpired.Error(), nil)
	default:
		h.logger.Warn("verify token failed", "error", err)
		response.Error(w, r, http.StatusBadGateway, response.CodeVerifyFailed, "token verification failed", nil)
	}
}

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	_, err := h.manager.RefreshToken(r.Context())
	switch {
	case err == nil:
		response.JSON(w, r, http.StatusOK, sessionView(h.manager.Snapshot()))
	case errors.Is(err, domain.ErrNoCredential):
		response.Error(w, r, http.StatusUnauthorized, response.CodeNoSession, err.Error(), nil)
	default:
		h.logger.Warn("refresh token failed", "error", err)
		response.Error(w, r, http.StatusBadGateway, response.CodeRefreshFailed, domain.ErrRefreshFailed.Error(), nil)
	}
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.manager.Logout(r.Context())
	response.JSON(w, r, http.StatusOK, sessionView(h.manager.Snapshot()))
}

func (h *SessionHandler) snapshot(r *http.Request) service.Snapshot {
	if snap, ok := middleware.SessionFromContext(r.Context()); ok {
		return snap
	}
	return h.manager.Snapshot()
}

func (h *SessionHandler) page(w http.ResponseWriter, r *http.Request, title string, snap service.Snapshot) pageData {
	data := pageData{
		Title:         title,
		Authenticated: snap.IsAuthenticated,
		CSRF:          middleware.EnsureCSRFCookie(w, r),
	}
	if snap.User != nil {
		data.Name = snap.User.ProfileString("name")
	}
	return data
}

type sessionPayload struct {
	Authenticated  bool           `json:"authenticated"`
	Loading        bool           `json:"loading"`
	State          string         `json:"state"`
	SessionID      string         `json:"session_id,omitempty"`
	LastActivity   *time.Time     `json:"last_activity,omitempty"`
	TokenExpiresAt *time.Time     `json:"token_expires_at,omitempty"`
	Profile        map[string]any `json:"profile,omitempty"`
}

// sessionView never exposes the token itself.
func sessionView(snap service.Snapshot) sessionPayload {
	out := sessionPayload{
		Authenticated: snap.IsAuthenticated,
		Loading:       snap.IsLoading,
		State:         snap.State.String(),
	}
	if snap.User == nil {
		return out
	}
	out.SessionID = snap.User.SessionID
	out.Profile = snap.User.Profile
	if snap.User.LastActivity > 0 {
		t := time.UnixMilli(snap.User.LastActivity).UTC()
		out.LastActivity = &t
	}
	if exp, ok := security.ExpiresAt(snap.User.Token); ok {
		exp = exp.UTC()
		out.TokenExpiresAt = &exp
	}
	return out
}

// safeRedirect accepts only same-origin absolute paths.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}

func userMessage(err error, fallback string) string {
	var rej *domain.RemoteRejectionError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	var se *authapi.StatusError
	if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError && se.Message != "" {
		return se.Message
	}
	if errors.Is(err, domain.ErrNoCredential) {
		return "Please log in again"
	}
	return fallback
}

func statusFor(err error) int {
	var se *authapi.StatusError
	switch {
	case errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500:
		return se.StatusCode
	case errors.Is(err, domain.ErrRemoteRejection), errors.Is(err, domain.ErrNoCredential):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}
