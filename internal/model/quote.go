package model

import "github.com/shopspring/decimal"

type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}
