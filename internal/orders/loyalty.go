package orders

import "github.com/shopspring/decimal"

// PointsForTotal awards one point per amountPerPoint of the order total, rounded down.
func PointsForTotal(total decimal.Decimal, amountPerPoint int64) int64 {
	if amountPerPoint <= 0 || !total.IsPositive() {
		return 0
	}
	return total.Div(decimal.NewFromInt(amountPerPoint)).Floor().IntPart()
}
