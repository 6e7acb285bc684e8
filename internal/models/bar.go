package models

import "time"

// DailyBar is one day of OHLCV market data for a symbol. Bars live in
// ClickHouse and are insert-only.
type DailyBar struct {
	Symbol string    `json:"symbol"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume uint64    `json:"volume"`
}

// Quote is a point-in-time price observation for a symbol.
type Quote struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	FetchedAt time.Time `json:"fetchedAt"`
	// Stale marks a quote served from the last stored daily close because
	// the live source was unavailable.
	Stale bool `json:"stale,omitempty"`
}
