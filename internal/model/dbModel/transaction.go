package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	TransactionID int64           `db:"transaction_id"`
	UserID        int64           `db:"user_id"`
	Symbol        string          `db:"symbol"`
	Shares        int             `db:"shares"`
	Price         decimal.Decimal `db:"price"`
	DtCreate      time.Time       `db:"dt_create"`
}

type Holding struct {
	Symbol string `db:"symbol"`
	Shares int    `db:"total_shares"`
}
