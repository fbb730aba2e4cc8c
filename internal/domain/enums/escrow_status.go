package enums

type EscrowStatus string

const (
	EscrowStatusInactive EscrowStatus = "inactive"
	EscrowStatusActive   EscrowStatus = "active"
	EscrowStatusCheckout EscrowStatus = "checkout"
	EscrowStatusPaid     EscrowStatus = "paid"
)

func (s EscrowStatus) Terminal() bool {
	return s == EscrowStatusPaid
}
