package utils

import (
	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// FormatUSD renders a monetary amount as a localized USD string, e.g. "$1,234.50".
func FormatUSD(amount decimal.Decimal) string {
	cents := amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
	return money.New(cents, money.USD).Display()
}
