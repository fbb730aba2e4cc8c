package model

import "time"

// Listing is read-only from this core's perspective. PriceMinor is the price
// in minor currency units (kobo for NGN) to keep escrow snapshots exact.
type Listing struct {
	ID          int64     `json:"id"`
	OwnerUserID int64     `json:"owner_user_id"`
	Title       string    `json:"title"`
	PriceMinor  int64     `json:"price_minor"`
	Currency    string    `json:"currency"`
	ImageKey    string    `json:"image_key"`
	CreatedAt   time.Time `json:"created_at"`
}
