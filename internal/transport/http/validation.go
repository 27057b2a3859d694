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
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes bounds request bodies accepted by the JSON endpoints.
const maxBodyBytes = 1 << 20

const passwordSymbols = `!@#$%^&*(),.?":{}|<>`

// SignupRequest represents signup data. A nil field was absent or not a
// JSON string.
type SignupRequest struct {
	Email    *string `json:"email" validate:"required,email" example:"user@example.com"`
	Password *string `json:"password" validate:"required,password_strength" example:"Password1!"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    *string `json:"email" validate:"required,email" example:"user@example.com"`
	Password *string `json:"password" validate:"required,min=8" example:"Password1!"`
}

// credentials is a validated email and password pair.
type credentials struct {
	Email    string
	Password string
}

// credentialBody keeps field presence and type so that a missing or
// non-string field is reported as "required".
type credentialBody struct {
	Email    any `json:"email"`
	Password any `json:"password"`
}

// fieldMessages maps "<field>.<tag>" to the message shown to clients.
var fieldMessages = map[string]string{
	"email.required":    "Email is required",
	"email.email":       "Please enter a valid email",
	"password.required": "Password is required",
	"password.min":      "Password must be at least 8 characters",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		return name
	})
	if err := v.RegisterValidation("password_strength", func(fl validator.FieldLevel) bool {
		return len(passwordProblems(fl.Field().String())) == 0
	}); err != nil {
		panic(err)
	}
	return v
}

var errMalformedBody = errors.New("request body must be a JSON object")

func decodeCredentials(r *http.Request) (credentialBody, error) {
	var body credentialBody
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return credentialBody{}, errMalformedBody
	}
	return body, nil
}

func bodyError() []FieldError {
	return []FieldError{{Field: "body", Message: "Request body must be valid JSON"}}
}

// validateSignup checks email format and password strength. Every failing
// rule is reported.
func validateSignup(body credentialBody) (credentials, []FieldError) {
	req := SignupRequest{Email: stringField(body.Email), Password: stringField(body.Password)}
	return credentials{Email: deref(req.Email), Password: deref(req.Password)}, validateRequest(req)
}

func validateLogin(body credentialBody) (credentials, []FieldError) {
	req := LoginRequest{Email: stringField(body.Email), Password: stringField(body.Password)}
	return credentials{Email: deref(req.Email), Password: deref(req.Password)}, validateRequest(req)
}

// validateRequest runs the struct's validate tags and translates failures
// into client-facing field errors.
func validateRequest(req any) []FieldError {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return bodyError()
	}

	var details []FieldError
	for _, fe := range verrs {
		if fe.Tag() == "password_strength" {
			for _, msg := range passwordProblems(fieldString(fe.Value())) {
				details = append(details, FieldError{Field: fe.Field(), Message: msg})
			}
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "Invalid value"
		}
		details = append(details, FieldError{Field: fe.Field(), Message: msg})
	}
	return details
}

// passwordProblems lists every strength rule password breaks, in display order.
func passwordProblems(password string) []string {
	var problems []string
	if len([]rune(password)) < 8 {
		problems = append(problems, "Password must be at least 8 characters")
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		problems = append(problems, "Password must contain at least one number")
	}
	if !strings.ContainsFunc(password, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		problems = append(problems, "Password must contain at least one uppercase letter")
	}
	if !strings.ContainsAny(password, passwordSymbols) {
		problems = append(problems, "Password must contain at least one symbol")
	}
	return problems
}

func stringField(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func fieldString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case *string:
		return deref(s)
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
