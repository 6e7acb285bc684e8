package models

import "time"

// WatchlistEntry tracks a symbol a user follows without necessarily holding
// it. Unique per (user, symbol).
type WatchlistEntry struct {
	UserID  string    `json:"userId" db:"user_id"`
	Symbol  string    `json:"symbol" db:"symbol"`
	AddedAt time.Time `json:"addedAt" db:"added_at"`
}
