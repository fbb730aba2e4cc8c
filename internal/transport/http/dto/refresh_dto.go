package dto

type RefreshSnapshotResponse struct {
	PendingRequests []RequestItemResponse         `json:"pending_requests"`
	Conversations   []ConversationSummaryResponse `json:"conversations"`
	NewMessages     int64                         `json:"new_messages"`
}
