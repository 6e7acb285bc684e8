// Package models provides data models for the paper trading system.
package models

import (
	"time"

	"github.com/paper-trader/internal/types"
)

// User represents a registered user
type User struct {
	ID           string         `json:"id" db:"id"`
	Email        string         `json:"email" db:"email"`
	PasswordHash string         `json:"-" db:"password_hash"`
	DisplayName  string         `json:"displayName" db:"display_name"`
	Tier         types.UserTier `json:"tier" db:"tier"`
	CreatedAt    time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time      `json:"updatedAt" db:"updated_at"`
}
