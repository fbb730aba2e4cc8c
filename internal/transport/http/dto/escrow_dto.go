package dto

import "time"

type SetEscrowActiveRequest struct {
	Active bool `json:"active"`
}

type EscrowResponse struct {
	ConversationID int64     `json:"conversation_id"`
	ListingID      int64     `json:"listing_id"`
	Status         string    `json:"status"`
	PriceSnapshot  *int64    `json:"price_snapshot,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
