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

// Package account manages store-scoped user accounts and their passwords.
package account

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrAccountNotFound      = errors.New("account not found")
	ErrAccountAlreadyExists = errors.New("account already exists in this store")
)

// Account is a user that belongs to exactly one store. The same email may
// exist in several stores as unrelated accounts.
type Account struct {
	ID           string
	Email        string
	PasswordHash string
	TenantID     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository defines account persistence. Every lookup is scoped to a store.
type Repository interface {
	// Create inserts the account. It returns ErrAccountAlreadyExists when the
	// (email, store) pair is taken.
	Create(ctx context.Context, acc *Account) error

	// GetByEmail returns ErrAccountNotFound when no account matches.
	GetByEmail(ctx context.Context, tenantID, email string) (*Account, error)

	// GetByID returns ErrAccountNotFound when no account matches.
	GetByID(ctx context.Context, tenantID, id string) (*Account, error)
}
