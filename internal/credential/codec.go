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

// Package credential mints and verifies the signed bearer tokens that bind
// an account to the store it signed up in.
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opentrusty/storefront/internal/observability/logger"
)

// DefaultTTL is the lifetime of a freshly minted token.
const DefaultTTL = 24 * time.Hour

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("signing secret is required")

// Claims is the decoded payload of a verified token.
type Claims struct {
	AccountID string
	TenantID  string
	ExpiresAt time.Time
}

// tokenClaims is the wire form. Claim names match the tokens issued by the
// previous deployment so existing clients keep working.
type tokenClaims struct {
	UserID  string `json:"userId"`
	StoreID string `json:"storeId"`
	jwt.RegisteredClaims
}

// Codec signs and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for minting and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// NewCodec creates a codec. A zero ttl means DefaultTTL.
func NewCodec(secret string, ttl time.Duration, opts ...Option) (*Codec, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c := &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Mint issues a token for accountID scoped to tenantID.
func (c *Codec) Mint(accountID, tenantID string) (string, error) {
	now := c.now()
	claims := tokenClaims{
		UserID:  accountID,
		StoreID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry. It never returns an error: any failure
// is logged and reported as ok == false.
func (c *Codec) Verify(ctx context.Context, raw string) (Claims, bool) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, c.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		slog.WarnContext(ctx, "token verification failed",
			logger.Component("credential"),
			logger.Error(err),
		)
		return Claims{}, false
	}

	if claims.UserID == "" || claims.StoreID == "" {
		slog.WarnContext(ctx, "token verification failed",
			logger.Component("credential"),
			logger.ErrorType("missing_claims"),
		)
		return Claims{}, false
	}

	return Claims{
		AccountID: claims.UserID,
		TenantID:  claims.StoreID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, true
}

func (c *Codec) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return c.secret, nil
}
