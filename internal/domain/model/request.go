package model

import (
	"time"

	"github.com/ebuka-odih/nyem-backend/internal/domain/enums"
)

// MatchRequest is a one-directional interest signal on a listing. The
// recipient is implicit: the listing owner. At most one pending request may
// exist per (from_user, listing) pair.
type MatchRequest struct {
	ID          int64               `json:"id"`
	FromUserID  int64               `json:"from_user_id"`
	ToUserID    int64               `json:"to_user_id"`
	ListingID   int64               `json:"listing_id"`
	MessageText string              `json:"message_text,omitempty"`
	Status      enums.RequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	ResolvedAt  *time.Time          `json:"resolved_at,omitempty"`
}
