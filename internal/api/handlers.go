// Package api exposes the fittrack HTTP API.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"example.com/fittrack/internal/auth"
	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/motion"
)

// Handler coordinates HTTP requests with the domain services.
type Handler struct {
	activities *domain.ActivityService
	profiles   *domain.ProfileService
	accounts   *domain.AccountService
	detectors  *motion.Registry
	tokens     auth.Config
	tokenTTL   time.Duration
	logger     *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger overrides the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDetectors sets the registry feeding the samples endpoint.
func WithDetectors(registry *motion.Registry) Option {
	return func(h *Handler) {
		if registry != nil {
			h.detectors = registry
		}
	}
}

// WithTokenTTL sets the lifetime of tokens issued on login and registration.
func WithTokenTTL(ttl time.Duration) Option {
	return func(h *Handler) {
		if ttl > 0 {
			h.tokenTTL = ttl
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(activities *domain.ActivityService, profiles *domain.ProfileService, accounts *domain.AccountService, tokens auth.Config, opts ...Option) *Handler {
	h := &Handler{
		activities: activities,
		profiles:   profiles,
		accounts:   accounts,
		detectors:  motion.NewRegistry(),
		tokens:     tokens,
		tokenTTL:   24 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the router. Fixed paths are registered before their {id} siblings.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	r.HandleFunc("/v1/users", h.register).Methods(http.MethodPost)
	r.HandleFunc("/v1/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/v1/users/{id}", h.getUser).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/profile", h.getProfile).Methods(http.MethodGet)
	r.HandleFunc("/v1/users/{id}/profile", h.updateProfile).Methods(http.MethodPatch)
	r.HandleFunc("/v1/users/{id}/data", h.clearData).Methods(http.MethodDelete)
	r.HandleFunc("/v1/weekly-activity/{id}", h.weekly).Methods(http.MethodGet)

	r.HandleFunc("/v1/daily-activity/today", h.today).Methods(http.MethodGet)
	r.HandleFunc("/v1/daily-activity/today/steps", h.setTodaysSteps).Methods(http.MethodPut)
	r.HandleFunc("/v1/daily-activity/today/entries", h.addTodaysEntry).Methods(http.MethodPost)
	r.HandleFunc("/v1/daily-activity/today/samples", h.ingestSamples).Methods(http.MethodPost)
	r.HandleFunc("/v1/daily-activity/history", h.history).Methods(http.MethodGet)
	r.HandleFunc("/v1/daily-activity/export", h.export).Methods(http.MethodGet)
	r.HandleFunc("/v1/daily-activity", h.listActivities).Methods(http.MethodGet)
	r.HandleFunc("/v1/daily-activity", h.createActivity).Methods(http.MethodPost)
	r.HandleFunc("/v1/daily-activity/{id}", h.getActivity).Methods(http.MethodGet)
	r.HandleFunc("/v1/daily-activity/{id}", h.updateActivity).Methods(http.MethodPatch)
	r.HandleFunc("/v1/daily-activity/{id}", h.deleteActivity).Methods(http.MethodDelete)

	r.HandleFunc("/v1/manual-entry", h.listEntries).Methods(http.MethodGet)
	r.HandleFunc("/v1/manual-entry", h.createEntry).Methods(http.MethodPost)
	r.HandleFunc("/v1/manual-entry/{id}", h.getEntry).Methods(http.MethodGet)
	r.HandleFunc("/v1/manual-entry/{id}", h.updateEntry).Methods(http.MethodPatch)
	r.HandleFunc("/v1/manual-entry/{id}", h.deleteEntry).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	})
}

// Router returns a fresh router with every route registered.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// authorize resolves the caller's claims and checks that one of scopes was granted.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	for _, scope := range scopes {
		if claims.HasScope(scope) {
			return claims, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
	return nil, false
}

// ownUser authorizes the request and checks that the user it names is the caller.
// An empty userID stands for the caller.
func (h *Handler) ownUser(w http.ResponseWriter, r *http.Request, userID string, scopes ...string) (string, bool) {
	claims, ok := h.authorize(w, r, scopes...)
	if !ok {
		return "", false
	}
	if userID != "" && userID != claims.Subject {
		writeError(w, http.StatusForbidden, "forbidden", "cannot access another user's data")
		return "", false
	}
	return claims.Subject, true
}

func readScopes() []string { return []string{auth.ScopeActivityRead, auth.ScopeActivityWrite} }

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, profile, err := h.accounts.Register(r.Context(), domain.RegisterInput{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Profile:   req.ProfileRequest.Patch(),
	})
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}

	view := ToProfileView(profile)
	h.writeSession(w, http.StatusCreated, user, &view)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.writeSession(w, http.StatusOK, user, nil)
}

func (h *Handler) writeSession(w http.ResponseWriter, status int, user domain.User, profile *ProfileView) {
	token, expires, err := auth.Issue(user.ID, auth.DefaultScopes, h.tokenTTL, h.tokens)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, status, SessionResponse{
		User:      ToUserView(user),
		Profile:   profile,
		Token:     token,
		ExpiresAt: expires,
	})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, mux.Vars(r)["id"], readScopes()...)
	if !ok {
		return
	}
	user, err := h.accounts.GetUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToUserView(user))
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, mux.Vars(r)["id"], auth.ScopeActivityRead, auth.ScopeProfileWrite)
	if !ok {
		return
	}
	profile, err := h.profiles.GetProfile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToProfileView(profile))
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, mux.Vars(r)["id"], auth.ScopeProfileWrite)
	if !ok {
		return
	}
	var req ProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	profile, err := h.profiles.UpdateProfile(r.Context(), userID, req.Patch())
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToProfileView(profile))
}

func (h *Handler) clearData(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, mux.Vars(r)["id"], auth.ScopeActivityWrite)
	if !ok {
		return
	}
	if err := h.activities.ClearAllData(r.Context(), userID); err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	h.detectors.Forget(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) weekly(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.ownUser(w, r, mux.Vars(r)["id"], readScopes()...)
	if !ok {
		return
	}
	summary, err := h.activities.WeeklySummary(r.Context(), userID)
	if err != nil {
		writeDomainError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ToWeeklyView(summary))
}
