package enums

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusDeclined RequestStatus = "declined"
)

func (s RequestStatus) Resolved() bool {
	return s == RequestStatusAccepted || s == RequestStatusDeclined
}
