package helpers

import (
	"strings"

	"github.com/angelmondragon/dailycart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/dailycart-backend/pkg/errors"
)

const maxAddressLength = 500

// ParsePaymentMethod validates the requested payment method.
func ParsePaymentMethod(raw string) (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").
			WithDetails(map[string]any{"payment_method": raw})
	}
	return method, nil
}

// NormalizeAddress trims the delivery address and enforces a sane length.
func NormalizeAddress(raw string) (string, error) {
	address := strings.Join(strings.Fields(raw), " ")
	if address == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "delivery address is required")
	}
	if len(address) > maxAddressLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "delivery address is too long")
	}
	return address, nil
}

// NormalizePhone strips separators and keeps an optional leading plus. Only
// ASCII digits are accepted.
func NormalizePhone(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range trimmed {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", invalidPhone(raw)
		}
	}
	phone := b.String()
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 10 || len(digits) > 15 {
		return "", invalidPhone(raw)
	}
	return phone, nil
}

// NormalizeReference drops blank gateway references.
func NormalizeReference(raw *string) *string {
	if raw == nil {
		return nil
	}
	ref := strings.TrimSpace(*raw)
	if ref == "" {
		return nil
	}
	return &ref
}

func invalidPhone(raw string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid contact phone").
		WithDetails(map[string]any{"contact_phone": raw})
}
