package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
)

// Message is append-only. ClientRef is the sender-generated correlation id
// that makes optimistic sends replay-safe: retrying a failed send with the
// same ref reconciles to the existing row instead of duplicating it.
// Ordering key is (created_at, id), id breaking ties.
type Message struct {
	ID             int64               `json:"id"`
	ConversationID int64               `json:"conversation_id"`
	SenderID       int64               `json:"sender_id"`
	ClientRef      uuid.UUID           `json:"client_ref"`
	Text           string              `json:"text"`
	DeliveryState  enums.DeliveryState `json:"delivery_state"`
	CreatedAt      time.Time           `json:"created_at"`
}
