package model

import "github.com/shopspring/decimal"

type Position struct {
	Symbol string
	Shares int
	Price  decimal.Decimal
	Value  decimal.Decimal
}

// Portfolio is the valuation of a user's holdings at current quotes.
// TotalValue and GrandTotal are computed identically; both are kept
// because the page contract exposes both fields.
type Portfolio struct {
	Positions  []Position
	Cash       decimal.Decimal
	TotalValue decimal.Decimal
	GrandTotal decimal.Decimal
}
