package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one immutable row of the trading log.
// Shares is signed: positive for a buy, negative for a sell.
type Transaction struct {
	TransactionID int64
	Symbol        string
	Shares        int
	Price         decimal.Decimal
	DtCreate      time.Time
}

// Holding is the derived per-symbol position, never stored.
type Holding struct {
	Symbol string
	Shares int
}
