package model

import (
	"time"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
)

// EscrowSession gates a checkout behind explicit buyer confirmation. The
// price is snapshotted at beginCheckout and never live-read again during the
// attempt; a cancelled attempt drops its snapshot.
type EscrowSession struct {
	ConversationID int64              `json:"conversation_id"`
	ListingID      int64              `json:"listing_id"`
	Status         enums.EscrowStatus `json:"status"`
	PriceSnapshot  *int64             `json:"price_snapshot,omitempty"`
	Currency       string             `json:"currency,omitempty"`
	UpdatedAt      time.Time          `json:"updated_at"`
}
