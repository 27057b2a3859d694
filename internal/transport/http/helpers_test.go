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
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/opentrusty/storefront/internal/account"
	"github.com/opentrusty/storefront/internal/audit"
	ristrettocache "github.com/opentrusty/storefront/internal/cache/ristretto"
	"github.com/opentrusty/storefront/internal/credential"
	"github.com/opentrusty/storefront/internal/observability/metrics"
	"github.com/opentrusty/storefront/internal/tenant"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const testSecret = "test-signing-secret"

const (
	storeAID = "0190a6f0-0000-7000-8000-00000000000a"
	storeBID = "0190a6f0-0000-7000-8000-00000000000b"
)

// memTenants serves a fixed set of stores and counts lookups.
type memTenants struct {
	mu      sync.Mutex
	stores  map[string]*tenant.Tenant
	lookups int
	err     error
}

func newMemTenants() *memTenants {
	welcomeA := "Welcome to Store A"
	welcomeB := "Welcome to Store B"
	return &memTenants{stores: map[string]*tenant.Tenant{
		"a": {ID: storeAID, Name: "Store A", Slug: "a", WelcomeMessage: &welcomeA, Theme: "#3b82f6"},
		"b": {ID: storeBID, Name: "Store B", Slug: "b", WelcomeMessage: &welcomeB, Theme: "#ef4444"},
	}}
}

func (m *memTenants) GetBySlug(_ context.Context, slug string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	t, ok := m.stores[slug]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	cp := *t
	return &cp, nil
}

// memAccounts is an in-memory account.Repository with (email, store) uniqueness.
type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*account.Account
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: make(map[string]*account.Account)}
}

func (m *memAccounts) Create(_ context.Context, acc *account.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.TenantID == acc.TenantID && a.Email == acc.Email {
			return account.ErrAccountAlreadyExists
		}
	}
	cp := *acc
	m.accounts[acc.ID] = &cp
	return nil
}

func (m *memAccounts) GetByEmail(_ context.Context, tenantID, email string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.TenantID == tenantID && a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, account.ErrAccountNotFound
}

func (m *memAccounts) GetByID(_ context.Context, tenantID, id string) (*account.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok || a.TenantID != tenantID {
		return nil, account.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

// testServer is a fully wired router over in-memory storage.
type testServer struct {
	router  http.Handler
	tenants *memTenants
	codec   *credential.Codec
	audit   *recordingAudit
	reader  *sdkmetric.ManualReader
	limiter *RateLimiter
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	tenants := newMemTenants()
	c, err := ristrettocache.New(1 << 20)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	dir := tenant.NewDirectory(tenants, c, time.Hour)

	rec := &recordingAudit{}
	accounts, err := account.NewService(newMemAccounts(), account.NewArgon2Hasher(1024, 1, 1, 16, 32), rec)
	require.NoError(t, err)

	codec, err := credential.NewCodec(testSecret, 0)
	require.NoError(t, err)

	reader := sdkmetric.NewManualReader()
	meter := metrics.NewWithProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), "test")
	instruments, err := meter.NewInstruments()
	require.NoError(t, err)

	limiter := NewRateLimiter(1000, 1000)
	t.Cleanup(limiter.Close)

	h := NewHandler(accounts, codec, rec, instruments, "storefront-test")
	router := NewRouter(h, dir, RouterConfig{
		ReservedLabels: []string{"localhost", "api"},
		RateLimiter:    limiter,
	})

	return &testServer{
		router:  router,
		tenants: tenants,
		codec:   codec,
		audit:   rec,
		reader:  reader,
		limiter: limiter,
	}
}

type request struct {
	method string
	host   string
	path   string
	body   string
	token  string
}

func (s *testServer) do(t *testing.T, req request) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()

	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.Host = req.host
	if req.body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, r)

	var env Envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

// data decodes the envelope payload into out.
func data(t *testing.T, env Envelope, out any) {
	t.Helper()
	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}

func (s *testServer) signup(t *testing.T, host, email, password string) AuthResponse {
	t.Helper()
	w, env := s.do(t, request{
		method: http.MethodPost,
		host:   host,
		path:   "/signup",
		body:   `{"email":"` + email + `","password":"` + password + `"}`,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var out AuthResponse
	data(t, env, &out)
	return out
}
