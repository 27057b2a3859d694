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

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/opentrusty/storefront/internal/account"
	"github.com/opentrusty/storefront/internal/id"
)

// AccountRepository implements account.Repository
type AccountRepository struct {
	db *DB
}

var _ account.Repository = (*AccountRepository)(nil)

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, store_id, created_at, updated_at`

// Create inserts an account
func (r *AccountRepository) Create(ctx context.Context, acc *account.Account) error {
	err := r.db.pool.QueryRow(ctx, `
		INSERT INTO accounts (id, email, password_hash, store_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, acc.ID, acc.Email, acc.PasswordHash, acc.TenantID, acc.CreatedAt, acc.UpdatedAt,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return account.ErrAccountAlreadyExists
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// GetByEmail retrieves an account by email within a store
func (r *AccountRepository) GetByEmail(ctx context.Context, tenantID, email string) (*account.Account, error) {
	if !id.IsUUID(tenantID) {
		return nil, account.ErrAccountNotFound
	}
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE email = $1 AND store_id = $2
	`, email, tenantID)
	return scanAccount(row)
}

// GetByID retrieves an account by id within a store
func (r *AccountRepository) GetByID(ctx context.Context, tenantID, accountID string) (*account.Account, error) {
	if !id.IsUUID(tenantID) || !id.IsUUID(accountID) {
		return nil, account.ErrAccountNotFound
	}
	row := r.db.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1 AND store_id = $2
	`, accountID, tenantID)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var acc account.Account
	err := row.Scan(&acc.ID, &acc.Email, &acc.PasswordHash, &acc.TenantID, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}
