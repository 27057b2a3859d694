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

	"github.com/opentrusty/storefront/internal/tenant"
)

type contextKey string

const (
	tenantKey        contextKey = "tenant"
	accountIDKey     contextKey = "account_id"
	tokenTenantIDKey contextKey = "token_tenant_id"
)

// WithTenant attaches the store resolved from the request host.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves the resolved store, or nil when the host names none.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if val, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return val
	}
	return nil
}

// GetTenantID retrieves the id of the resolved store.
func GetTenantID(ctx context.Context) string {
	if t := GetTenant(ctx); t != nil {
		return t.ID
	}
	return ""
}

// withPrincipal attaches the authenticated account and the store its token was issued for.
func withPrincipal(ctx context.Context, accountID, tenantID string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey, accountID)
	return context.WithValue(ctx, tokenTenantIDKey, tenantID)
}

// GetAccountID retrieves the authenticated account id from context.
func GetAccountID(ctx context.Context) string {
	if val, ok := ctx.Value(accountIDKey).(string); ok {
		return val
	}
	return ""
}

// GetTokenTenantID retrieves the store id carried by the verified token.
func GetTokenTenantID(ctx context.Context) string {
	if val, ok := ctx.Value(tokenTenantIDKey).(string); ok {
		return val
	}
	return ""
}
