package model

import "time"

// Conversation is a mutual two-party thread scoped to a listing. The pair is
// stored normalized (user_a_id < user_b_id) so the uniqueness constraint on
// (user_a_id, user_b_id, listing_id) holds for either submission order.
type Conversation struct {
	ID        int64     `json:"id"`
	UserAID   int64     `json:"user_a_id"`
	UserBID   int64     `json:"user_b_id"`
	ListingID int64     `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c Conversation) HasParticipant(userID int64) bool {
	return c.UserAID == userID || c.UserBID == userID
}

func (c Conversation) OtherParticipant(userID int64) int64 {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}
