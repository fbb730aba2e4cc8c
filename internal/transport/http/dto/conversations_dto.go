package dto

import "time"

type ConversationResponse struct {
	ID        int64     `json:"id"`
	UserAID   int64     `json:"user_a_id"`
	UserBID   int64     `json:"user_b_id"`
	ListingID int64     `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ConversationSummaryResponse struct {
	ID                int64      `json:"id"`
	ListingID         int64      `json:"listing_id"`
	OtherUserID       int64      `json:"other_user_id"`
	OtherName         string     `json:"other_name,omitempty"`
	ListingTitle      string     `json:"listing_title,omitempty"`
	LastMessageText   string     `json:"last_message_text,omitempty"`
	LastMessageAt     *time.Time `json:"last_message_at,omitempty"`
	LastMessageSender int64      `json:"last_message_sender,omitempty"`
	UnreadCount       int        `json:"unread_count"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type ConversationsResponse struct {
	Items []ConversationSummaryResponse `json:"items"`
}

type OpenConversationRequest struct {
	SessionScope string `json:"session_scope"`
}

type CloseConversationRequest struct {
	SessionScope string `json:"session_scope"`
}

type OpenStateResponse struct {
	Conversation ConversationResponse `json:"conversation"`
	Escrow       *EscrowResponse      `json:"escrow,omitempty"`
}
