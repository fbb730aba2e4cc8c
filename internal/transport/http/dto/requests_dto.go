package dto

import "time"

type SubmitRequestRequest struct {
	ListingID int64  `json:"listing_id"`
	Message   string `json:"message,omitempty"`
}

type ResolveRequestRequest struct {
	Decision     string `json:"decision"`
	Reply        string `json:"reply,omitempty"`
	SessionScope string `json:"session_scope,omitempty"`
}

type RequestResponse struct {
	ID          int64      `json:"id"`
	FromUserID  int64      `json:"from_user_id"`
	ToUserID    int64      `json:"to_user_id"`
	ListingID   int64      `json:"listing_id"`
	MessageText string     `json:"message_text,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

type RequestItemResponse struct {
	RequestResponse
	SenderName      string `json:"sender_name,omitempty"`
	SenderAvatarKey string `json:"sender_avatar_key,omitempty"`
	ListingTitle    string `json:"listing_title,omitempty"`
	ListingPrice    int64  `json:"listing_price,omitempty"`
}

type RequestsResponse struct {
	Items []RequestItemResponse `json:"items"`
}

type ResolveRequestResponse struct {
	Request      RequestResponse       `json:"request"`
	Conversation *ConversationResponse `json:"conversation,omitempty"`
	FirstMessage *MessageResponse      `json:"first_message,omitempty"`
	Escrow       *EscrowResponse       `json:"escrow,omitempty"`
	Replayed     bool                  `json:"replayed"`
}
