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
	"testing"

	"github.com/stretchr/testify/assert"
)

func messages(details []FieldError, field string) []string {
	var out []string
	for _, d := range details {
		if d.Field == field {
			out = append(out, d.Message)
		}
	}
	return out
}

// TestPurpose: Validates signup password strength rules and that every failing rule is reported.
// Scope: Unit Test
// Security: Password strength validation (prevents weak credentials)
// Expected: Each missing character class produces its own message; a compliant password passes.
// Test Case ID: VAL-01
func TestValidateSignup_PasswordRules(t *testing.T) {
	tests := []struct {
		password string
		want     []string
	}{
		{"Password1!", nil},
		{"Pa1!", []string{"Password must be at least 8 characters"}},
		{"Password!", []string{"Password must contain at least one number"}},
		{"password1!", []string{"Password must contain at least one uppercase letter"}},
		{"Password1", []string{"Password must contain at least one symbol"}},
		{"abc", []string{
			"Password must be at least 8 characters",
			"Password must contain at least one number",
			"Password must contain at least one uppercase letter",
			"Password must contain at least one symbol",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			_, details := validateSignup(credentialBody{Email: "user@example.com", Password: tt.password})
			assert.Equal(t, tt.want, messages(details, "password"))
			assert.Empty(t, messages(details, "email"))
		})
	}
}

func TestValidateSignup_RequiredFields(t *testing.T) {
	_, details := validateSignup(credentialBody{})
	assert.Equal(t, []FieldError{
		{Field: "email", Message: "Email is required"},
		{Field: "password", Message: "Password is required"},
	}, details)

	_, details = validateSignup(credentialBody{Email: 42.0, Password: true})
	assert.Equal(t, []string{"Email is required"}, messages(details, "email"))
	assert.Equal(t, []string{"Password is required"}, messages(details, "password"))
}

func TestValidateLogin(t *testing.T) {
	req, details := validateLogin(credentialBody{Email: "user@example.com", Password: "anything8"})
	assert.Empty(t, details)
	assert.Equal(t, "user@example.com", req.Email)

	_, details = validateLogin(credentialBody{Email: "user@", Password: "short"})
	assert.Equal(t, []FieldError{
		{Field: "email", Message: "Please enter a valid email"},
		{Field: "password", Message: "Password must be at least 8 characters"},
	}, details)
}

func TestValidateLogin_EmailFormat(t *testing.T) {
	valid := []string{"user@example.com", "first.last+tag@sub.example.co"}
	invalid := []string{
		"",
		"plain",
		"user@",
		"@example.com",
		"user@localhost",
		"User <user@example.com>",
		"<user@example.com>",
	}
	for _, e := range valid {
		_, details := validateLogin(credentialBody{Email: e, Password: "anything8"})
		assert.Empty(t, details, e)
	}
	for _, e := range invalid {
		_, details := validateLogin(credentialBody{Email: e, Password: "anything8"})
		assert.Equal(t, []string{"Please enter a valid email"}, messages(details, "email"), e)
	}
}

func TestValidateSignup_EmptyStringIsNotMissing(t *testing.T) {
	_, details := validateSignup(credentialBody{Email: "", Password: ""})
	assert.Equal(t, []string{"Please enter a valid email"}, messages(details, "email"))
	assert.Len(t, messages(details, "password"), 4)
}
