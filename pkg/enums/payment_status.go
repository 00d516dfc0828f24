package enums

// PaymentStatus is the outcome a payment gateway reports for a charge attempt.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusTimedOut  PaymentStatus = "timed_out"
)

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// Terminal reports whether no further status changes can follow.
func (p PaymentStatus) Terminal() bool {
	return p == PaymentStatusConfirmed || p == PaymentStatusFailed || p == PaymentStatusTimedOut
}
