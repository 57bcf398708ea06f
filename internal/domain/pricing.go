package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type PricingPolicy struct {
	VATRate     decimal.Decimal
	DeliveryFee decimal.Decimal
}

type Pricing struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	Discount           decimal.Decimal `json:"discount"`
	DiscountedSubtotal decimal.Decimal `json:"discounted_subtotal"`
	VAT                decimal.Decimal `json:"vat"`
	Delivery           decimal.Decimal `json:"delivery"`
	FinalAmount        decimal.Decimal `json:"final_amount"`
}

// ComputeOrderPricing applies discount to cartTotal before VAT. The discount
// is clamped to the subtotal. A cart with no value prices to all zeros.
func (p PricingPolicy) ComputeOrderPricing(cartTotal, discount decimal.Decimal) Pricing {
	if !cartTotal.IsPositive() {
		return Pricing{
			Subtotal:           decimal.Zero,
			Discount:           decimal.Zero,
			DiscountedSubtotal: decimal.Zero,
			VAT:                decimal.Zero,
			Delivery:           decimal.Zero,
			FinalAmount:        decimal.Zero,
		}
	}

	subtotal := cartTotal.Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	discount = discount.Round(2)

	discounted := subtotal.Sub(discount)
	vat := discounted.Mul(p.VATRate).Round(2)
	delivery := p.DeliveryFee.Round(2)

	return Pricing{
		Subtotal:           subtotal,
		Discount:           discount,
		DiscountedSubtotal: discounted,
		VAT:                vat,
		Delivery:           delivery,
		FinalAmount:        discounted.Add(vat).Add(delivery),
	}
}

// CartLine is the priced view of one cart row.
type CartLine struct {
	UnitPrice        decimal.Decimal
	IngredientPrices []decimal.Decimal
	Quantity         int
}

func (l CartLine) Total() decimal.Decimal {
	unit := l.UnitPrice
	for _, p := range l.IngredientPrices {
		unit = unit.Add(p)
	}
	return unit.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums the lines and takes couponPercent off the result.
func CartTotal(lines []CartLine, couponPercent decimal.Decimal) decimal.Decimal {
	gross := decimal.Zero
	for _, l := range lines {
		gross = gross.Add(l.Total())
	}
	return gross.Sub(CouponDiscount(gross, couponPercent)).Round(2)
}

// CouponDiscount is the amount a percent coupon takes off gross.
func CouponDiscount(gross, percent decimal.Decimal) decimal.Decimal {
	if !percent.IsPositive() || !gross.IsPositive() {
		return decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	return gross.Mul(percent).Div(hundred).Round(2)
}

// PointsDiscount is the currency value of points at pointValue per point.
func PointsDiscount(points int64, pointValue decimal.Decimal) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(points).Mul(pointValue).Round(2)
}

// PointsEarned is floor(total * rate).
func PointsEarned(total, rate decimal.Decimal) int64 {
	if !total.IsPositive() || !rate.IsPositive() {
		return 0
	}
	return total.Mul(rate).Floor().IntPart()
}
