package dbConverter

import (
	"tradeledger/internal/model"
	"tradeledger/internal/model/dbModel"
)

func ConvertUser(dbUser dbModel.User) model.User {
	return model.User{
		UserID:   dbUser.UserID,
		Username: dbUser.Username,
		Hash:     dbUser.Hash,
		Cash:     dbUser.Cash,
	}
}

func ConvertTransaction(dbTrx dbModel.Transaction) model.Transaction {
	return model.Transaction{
		TransactionID: dbTrx.TransactionID,
		Symbol:        dbTrx.Symbol,
		Shares:        dbTrx.Shares,
		Price:         dbTrx.Price,
		DtCreate:      dbTrx.DtCreate,
	}
}

func ConvertHolding(dbHolding dbModel.Holding) model.Holding {
	return model.Holding{
		Symbol: dbHolding.Symbol,
		Shares: dbHolding.Shares,
	}
}
