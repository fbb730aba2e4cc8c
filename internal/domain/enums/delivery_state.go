package enums

// DeliveryState tracks a message through optimistic send reconciliation.
// The server records "sent" at insert time; "pending" and "failed" are the
// client-local states before and after a transport failure.
type DeliveryState string

const (
	DeliveryStatePending DeliveryState = "pending"
	DeliveryStateSent    DeliveryState = "sent"
	DeliveryStateFailed  DeliveryState = "failed"
)
