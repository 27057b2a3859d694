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

package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSecret(t *testing.T) {
	tests := []struct {
		key      string
		isSecret bool
	}{
		{"password", true},
		{"Password", true},
		{"PASSWORD", true},
		{"token", true},
		{"access_token", true},
		{"secret", true},
		{"api_key", true},
		{"hash", true},
		{"password_hash", true},
		{"credential", true},
		{"private_key", true},
		{"user_id", false},
		{"tenant_id", false},
		{"email", false},
		{"reason", false},
		{AttrTokenTenantID, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.isSecret, isSecret(tt.key))
		})
	}
}

// TestPurpose: Validates that audit events are emitted as structured records with secrets redacted.
// Scope: Unit Test
// Security: Credential leakage through logs
// Expected: The record carries the event type and tenant; password metadata is replaced by [REDACTED].
// Test Case ID: AUD-01
func TestSlogLogger_Log_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLoggerWith(slog.New(slog.NewJSONHandler(&buf, nil)))

	l.Log(context.Background(), Event{
		Type:     TypeLoginFailed,
		TenantID: "store-a",
		Resource: "login",
		Metadata: map[string]any{
			AttrReason: "invalid_password",
			"password": "hunter2",
		},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "AUDIT_EVENT", rec["msg"])
	assert.Equal(t, TypeLoginFailed, rec["audit_type"])
	assert.Equal(t, "store-a", rec["tenant_id"])
	assert.Equal(t, "audit", rec["component"])

	meta, ok := rec["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "invalid_password", meta[AttrReason])
	assert.Equal(t, "[REDACTED]", meta["password"])
	assert.NotContains(t, buf.String(), "hunter2")
}
