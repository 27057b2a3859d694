// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package http

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/storefront/internal/audit"
	"github.com/opentrusty/storefront/internal/observability/logger"
	"github.com/opentrusty/storefront/internal/observability/metrics"
	"github.com/opentrusty/storefront/internal/tenant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Store context is derived EXCLUSIVELY from the first label of the Host
// header. A bearer token never selects a store; it can only be rejected by one.

// TenantResolver looks up stores by slug.
type TenantResolver interface {
	ResolveBySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			slog.DebugContext(r.Context(), "http_request_start",
				logger.RequestID(middleware.GetReqID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.Host(r.Host),
			)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request_end",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.Host(r.Host),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// PrometheusMiddleware records each request against its matched chi route
// pattern. Unmatched requests are recorded as "unmatched".
func PrometheusMiddleware(p *metrics.Prometheus) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				route := "unmatched"
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						route = pattern
					}
				}
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				p.ObserveRequest(r.Method, route, status, time.Since(start))
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// SlugFromHost returns the candidate store slug of a Host header value: the
// port is dropped, the host lower-cased and its first label returned. IP
// literals and labels that are not valid DNS labels yield "".
func SlugFromHost(host string) string {
	h := strings.TrimSpace(host)
	if hp, _, err := net.SplitHostPort(h); err == nil {
		h = hp
	}
	h = strings.ToLower(strings.Trim(h, "[]"))
	if h == "" || net.ParseIP(h) != nil {
		return ""
	}
	label, _, _ := strings.Cut(h, ".")
	if !isHostLabel(label) {
		return ""
	}
	return label
}

// isHostLabel reports whether s is an RFC 1123 label in lower case.
func isHostLabel(s string) bool {
	if len(s) == 0 || len(s) > 63 || s[0] == '-' || s[len(s)-1] == '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '-' {
			return false
		}
	}
	return true
}

// TenantResolution attaches the store named by the request host, if any.
// Unknown and reserved labels continue without a store; lookup failures
// end the request with 500.
func TenantResolution(resolver TenantResolver, reserved []string) func(http.Handler) http.Handler {
	reservedSet := make(map[string]struct{}, len(reserved))
	for _, label := range reserved {
		reservedSet[strings.ToLower(label)] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := SlugFromHost(r.Host)
			if slug == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := reservedSet[slug]; ok {
				next.ServeHTTP(w, r)
				return
			}

			t, err := resolver.ResolveBySlug(r.Context(), slug)
			if err != nil {
				if errors.Is(err, tenant.ErrTenantNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				slog.ErrorContext(r.Context(), "store resolution failed",
					logger.Component("tenant"),
					logger.Slug(slug),
					logger.Error(err),
				)
				respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to resolve store")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant enforces that the request host named a known store.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetTenant(r.Context()) == nil {
			respondError(w, http.StatusNotFound, CodeStoreNotFound, "Store not found")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize verifies the bearer token and, when a store was resolved, that
// the token was issued for it.
func (h *Handler) Authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		raw, ok := bearerToken(r)
		if !ok {
			h.recordAuthFailure(ctx, "missing_token")
			respondError(w, http.StatusUnauthorized, CodeMissingToken, "Authentication token required")
			return
		}

		claims, ok := h.codec.Verify(ctx, raw)
		if !ok {
			h.recordAuthFailure(ctx, "invalid_token")
			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeTokenRejected,
				TenantID:  GetTenantID(ctx),
				Resource:  r.URL.Path,
				IPAddress: getClientIP(r),
				UserAgent: r.UserAgent(),
			})
			respondError(w, http.StatusUnauthorized, CodeInvalidToken, "Invalid or expired token")
			return
		}

		if t := GetTenant(ctx); t != nil && claims.TenantID != t.ID {
			h.recordAuthFailure(ctx, "tenant_mismatch")
			h.instruments.TenantMismatch.Add(ctx, 1)
			h.auditLogger.Log(ctx, audit.Event{
				Type:      audit.TypeTenantMismatch,
				TenantID:  t.ID,
				ActorID:   claims.AccountID,
				Resource:  r.URL.Path,
				IPAddress: getClientIP(r),
				UserAgent: r.UserAgent(),
				Metadata:  map[string]any{audit.AttrTokenTenantID: claims.TenantID},
			})
			respondError(w, http.StatusForbidden, CodeTenantMismatch, "Access denied: User does not belong to this store")
			return
		}

		next.ServeHTTP(w, r.WithContext(withPrincipal(ctx, claims.AccountID, claims.TenantID)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	return raw, ok
}

func (h *Handler) recordAuthFailure(ctx context.Context, reason string) {
	h.instruments.AuthFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
