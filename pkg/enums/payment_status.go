package enums

import "fmt"

// PaymentStatus tracks settlement of an order's payment sub-record.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusVoided        PaymentStatus = "voided"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusPaid,
	PaymentStatusRefundPending,
	PaymentStatusVoided,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
