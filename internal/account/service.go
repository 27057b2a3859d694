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

package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opentrusty/storefront/internal/audit"
	"github.com/opentrusty/storefront/internal/id"
	"github.com/opentrusty/storefront/internal/observability/logger"
)

// dummyPassword is hashed once so that verification against an unknown
// account performs the same work as against a real one.
const dummyPassword = "storefront-dummy-password"

// Service provides account business logic
type Service struct {
	repo        Repository
	hasher      PasswordHasher
	auditLogger audit.Logger
	dummyHash   string
	now         func() time.Time
}

// NewService creates a new account service
func NewService(repo Repository, hasher PasswordHasher, auditLogger audit.Logger) (*Service, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		dummyHash:   dummy,
		now:         time.Now,
	}, nil
}

// Create hashes password and stores a new account in tenantID.
func (s *Service) Create(ctx context.Context, email, password, tenantID string) (*Account, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now().UTC()
	acc := &Account{
		ID:           id.NewUUIDv7(),
		Email:        email,
		PasswordHash: hash,
		TenantID:     tenantID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrAccountAlreadyExists) {
			return nil, ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeUserCreated,
		TenantID: tenantID,
		ActorID:  acc.ID,
		Resource: "account",
		Metadata: map[string]any{audit.AttrEmail: email},
	})

	slog.DebugContext(ctx, "account created",
		logger.Component("account"),
		logger.AccountID(acc.ID),
		logger.TenantID(tenantID),
	)
	return acc, nil
}

// FindByEmailInTenant returns the account with email in tenantID.
func (s *Service) FindByEmailInTenant(ctx context.Context, email, tenantID string) (*Account, error) {
	acc, err := s.repo.GetByEmail(ctx, tenantID, email)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account by email: %w", err)
	}
	return acc, nil
}

// FindByIDInTenant returns the account with accountID in tenantID. Ids that
// are not UUIDs cannot exist and are reported as not found.
func (s *Service) FindByIDInTenant(ctx context.Context, accountID, tenantID string) (*Account, error) {
	if !id.IsUUID(accountID) {
		return nil, ErrAccountNotFound
	}
	acc, err := s.repo.GetByID(ctx, tenantID, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return acc, nil
}

// VerifyPassword reports whether password matches acc. A nil acc is checked
// against a dummy hash and always fails.
func (s *Service) VerifyPassword(acc *Account, password string) bool {
	if acc == nil {
		_, _ = s.hasher.Verify(password, s.dummyHash)
		return false
	}
	ok, err := s.hasher.Verify(password, acc.PasswordHash)
	if err != nil {
		slog.Warn("stored password hash could not be verified",
			logger.Component("account"),
			logger.AccountID(acc.ID),
			logger.Error(err),
		)
		return false
	}
	return ok
}
