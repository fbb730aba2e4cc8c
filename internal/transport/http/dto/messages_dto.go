package dto

import "time"

type SendMessageRequest struct {
	ClientRef string `json:"client_ref"`
	Text      string `json:"text"`
}

type MessageResponse struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ClientRef      string    `json:"client_ref"`
	Text           string    `json:"text"`
	DeliveryState  string    `json:"delivery_state"`
	CreatedAt      time.Time `json:"created_at"`
}

type SendMessageResponse struct {
	Message MessageResponse `json:"message"`
	Replay  bool            `json:"replay"`
}

type MessagesResponse struct {
	Items []MessageResponse `json:"items"`
}

type SignalResponse struct {
	NewMessages int64 `json:"new_messages"`
}
