package enums

// CouponReason is the machine-readable cause attached to an ineligible coupon.
type CouponReason string

const (
	CouponReasonNotFound          CouponReason = "not_found"
	CouponReasonInactive          CouponReason = "inactive"
	CouponReasonNotStarted        CouponReason = "not_started"
	CouponReasonExpired           CouponReason = "expired"
	CouponReasonUsageLimitReached CouponReason = "usage_limit_reached"
	CouponReasonFirstOrderOnly    CouponReason = "first_order_only"
	CouponReasonUserLimitReached  CouponReason = "user_limit_reached"
	CouponReasonBelowMinOrder     CouponReason = "below_min_order"
	CouponReasonNotApplicable     CouponReason = "not_applicable"
)

var couponReasonMessages = map[CouponReason]string{
	CouponReasonNotFound:          "coupon code not found",
	CouponReasonInactive:          "coupon is no longer active",
	CouponReasonNotStarted:        "coupon is not valid yet",
	CouponReasonExpired:           "coupon has expired",
	CouponReasonUsageLimitReached: "coupon usage limit reached",
	CouponReasonFirstOrderOnly:    "coupon is valid on the first order only",
	CouponReasonUserLimitReached:  "you have already used this coupon",
	CouponReasonBelowMinOrder:     "order total is below the coupon minimum",
	CouponReasonNotApplicable:     "coupon does not apply to items in the cart",
}

// String implements fmt.Stringer.
func (r CouponReason) String() string {
	return string(r)
}

// Message returns the customer-facing text for the reason.
func (r CouponReason) Message() string {
	if msg, ok := couponReasonMessages[r]; ok {
		return msg
	}
	return "coupon not applicable"
}
