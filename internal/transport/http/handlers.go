// @title Storefront API
// @version 1.0.0
// @description Multi-tenant store backend. The store is selected by the first label of the Host header.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0

// @host a.localhost:4000
// @BasePath /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/storefront/internal/account"
	"github.com/opentrusty/storefront/internal/audit"
	"github.com/opentrusty/storefront/internal/credential"
	"github.com/opentrusty/storefront/internal/observability/logger"
	"github.com/opentrusty/storefront/internal/observability/metrics"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	accountService *account.Service
	codec          *credential.Codec
	auditLogger    audit.Logger
	instruments    *metrics.Instruments
	serviceName    string
}

// NewHandler creates a new HTTP handler. A nil instruments records nothing.
func NewHandler(
	accountService *account.Service,
	codec *credential.Codec,
	auditLogger audit.Logger,
	instruments *metrics.Instruments,
	serviceName string,
) *Handler {
	if instruments == nil {
		instruments = metrics.NoopInstruments()
	}
	if serviceName == "" {
		serviceName = "storefront"
	}
	return &Handler{
		accountService: accountService,
		codec:          codec,
		auditLogger:    auditLogger,
		instruments:    instruments,
		serviceName:    serviceName,
	}
}

// RouterConfig configures the request pipeline.
type RouterConfig struct {
	// ReservedLabels are host labels that never name a store.
	ReservedLabels []string
	// RequestTimeout bounds each request. Zero means 60s.
	RequestTimeout time.Duration
	// RateLimiter guards /signup and /login. Nil disables limiting.
	RateLimiter *RateLimiter
	// Prometheus, if set, records request metrics and serves /metrics.
	Prometheus *metrics.Prometheus
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, resolver TenantResolver, cfg RouterConfig) *chi.Mux {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	if cfg.Prometheus != nil {
		r.Use(PrometheusMiddleware(cfg.Prometheus))
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.HealthCheck)
	if cfg.Prometheus != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Prometheus.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(TenantResolution(resolver, cfg.ReservedLabels))

		limited := func(next http.Handler) http.Handler { return next }
		if cfg.RateLimiter != nil {
			var onReject func()
			if cfg.Prometheus != nil {
				onReject = cfg.Prometheus.RateLimited
			}
			limited = RateLimitMiddleware(cfg.RateLimiter, onReject)
		}

		r.With(RequireTenant).Get("/", h.GetStore)
		r.With(limited, RequireTenant).Post("/signup", h.Signup)
		r.With(limited, RequireTenant).Post("/login", h.Login)

		// Authorize precedes RequireTenant: a foreign token on a known host is a mismatch.
		r.With(h.Authorize, RequireTenant).Get("/profile", h.GetProfile)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.serviceName,
	})
}

// StoreResponse is the public view of a store
type StoreResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	WelcomeMessage *string `json:"welcome_message"`
	Theme          string  `json:"theme"`
}

// UserResponse is the public view of an account
type UserResponse struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	StoreID string `json:"store_id"`
}

// AuthResponse is returned by signup and login
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

func userResponse(acc *account.Account) UserResponse {
	return UserResponse{ID: acc.ID, Email: acc.Email, StoreID: acc.TenantID}
}

// GetStore returns the store named by the request host
// @Summary Current store
// @Tags Store
// @Produce json
// @Success 200 {object} Envelope
// @Failure 404 {object} Envelope
// @Router / [get]
func (h *Handler) GetStore(w http.ResponseWriter, r *http.Request) {
	t := GetTenant(r.Context())
	respondSuccess(w, http.StatusOK, "", StoreResponse{
		ID:             t.ID,
		Name:           t.Name,
		Slug:           t.Slug,
		WelcomeMessage: t.WelcomeMessage,
		Theme:          t.Theme,
	})
}

// Signup handles account registration in the current store
// @Summary Sign up
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup Data"
// @Success 201 {object} Envelope
// @Failure 400 {object} Envelope
// @Failure 404 {object} Envelope
// @Failure 409 {object} Envelope
// @Router /signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := GetTenant(ctx)

	body, err := decodeCredentials(r)
	if err != nil {
		respondValidation(w, bodyError())
		return
	}
	req, details := validateSignup(body)
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	acc, err := h.accountService.Create(ctx, req.Email, req.Password, t.ID)
	if err != nil {
		if errors.Is(err, account.ErrAccountAlreadyExists) {
			respondError(w, http.StatusConflict, CodeDuplicateEmail, "Email already exists in this store")
			return
		}
		slog.ErrorContext(ctx, "failed to create account",
			logger.TenantID(t.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}

	token, err := h.codec.Mint(acc.ID, acc.TenantID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint token",
			logger.AccountID(acc.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to create user")
		return
	}

	respondSuccess(w, http.StatusCreated, "User created successfully", AuthResponse{
		Token: token,
		User:  userResponse(acc),
	})
}

// Login authenticates an account of the current store
// @Summary Log in
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} Envelope
// @Failure 400 {object} Envelope
// @Failure 401 {object} Envelope
// @Failure 404 {object} Envelope
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	t := GetTenant(ctx)

	body, err := decodeCredentials(r)
	if err != nil {
		respondValidation(w, bodyError())
		return
	}
	req, details := validateLogin(body)
	if len(details) > 0 {
		respondValidation(w, details)
		return
	}

	acc, err := h.accountService.FindByEmailInTenant(ctx, req.Email, t.ID)
	if err != nil && !errors.Is(err, account.ErrAccountNotFound) {
		slog.ErrorContext(ctx, "failed to look up account",
			logger.TenantID(t.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Login failed")
		return
	}

	if !h.accountService.VerifyPassword(acc, req.Password) {
		reason := "invalid_password"
		actor := ""
		if acc == nil {
			reason = "unknown_email"
		} else {
			actor = acc.ID
		}
		h.recordAuthFailure(ctx, "invalid_credentials")
		h.auditLogger.Log(ctx, audit.Event{
			Type:      audit.TypeLoginFailed,
			TenantID:  t.ID,
			ActorID:   actor,
			Resource:  "login",
			IPAddress: getClientIP(r),
			UserAgent: r.UserAgent(),
			Metadata:  map[string]any{audit.AttrReason: reason, audit.AttrEmail: req.Email},
		})
		respondError(w, http.StatusUnauthorized, CodeInvalidCredentials, "Invalid credentials")
		return
	}

	token, err := h.codec.Mint(acc.ID, acc.TenantID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to mint token",
			logger.AccountID(acc.ID),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Login failed")
		return
	}

	h.auditLogger.Log(ctx, audit.Event{
		Type:      audit.TypeLoginSuccess,
		TenantID:  t.ID,
		ActorID:   acc.ID,
		Resource:  "login",
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
	})

	respondSuccess(w, http.StatusOK, "Login successful", AuthResponse{
		Token: token,
		User:  userResponse(acc),
	})
}

// GetProfile returns the authenticated account
// @Summary Current account
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Envelope
// @Failure 401 {object} Envelope
// @Failure 403 {object} Envelope
// @Failure 404 {object} Envelope
// @Router /profile [get]
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	acc, err := h.accountService.FindByIDInTenant(ctx, GetAccountID(ctx), GetTokenTenantID(ctx))
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound) {
			respondError(w, http.StatusNotFound, CodeUserNotFound, "User not found")
			return
		}
		slog.ErrorContext(ctx, "failed to fetch profile",
			logger.AccountID(GetAccountID(ctx)),
			logger.Error(err),
		)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to fetch user profile")
		return
	}

	respondSuccess(w, http.StatusOK, "", userResponse(acc))
}
