package enums

import "fmt"

// PaymentMethod describes how a customer settles an order.
type PaymentMethod string

const (
	PaymentMethodUPI            PaymentMethod = "upi"
	PaymentMethodCard           PaymentMethod = "card"
	PaymentMethodNetBanking     PaymentMethod = "net_banking"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodWallet         PaymentMethod = "wallet"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodUPI,
	PaymentMethodCard,
	PaymentMethodNetBanking,
	PaymentMethodCashOnDelivery,
	PaymentMethodWallet,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// IsCashOnDelivery reports whether money changes hands at the door.
func (p PaymentMethod) IsCashOnDelivery() bool {
	return p == PaymentMethodCashOnDelivery
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
