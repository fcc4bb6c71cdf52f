package tradingService

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"tradeledger/data/repository"
	"tradeledger/internal/model"
	"tradeledger/internal/service"
	"tradeledger/utils"
)

type Repository interface {
	InsertUser(ctx context.Context, username, hash string) (userID int64, err error)
	GetUserByUsername(ctx context.Context, username string) (user model.User, err error)
	GetCash(ctx context.Context, userID int64) (cash decimal.Decimal, err error)
	GetCashForUpdate(ctx context.Context, userID int64) (cash decimal.Decimal, err error)
	UpdateCash(ctx context.Context, userID int64, delta decimal.Decimal) (err error)
	InsertTransaction(ctx context.Context, userID int64, trx model.Transaction) (err error)
	GetHoldings(ctx context.Context, userID int64) (holdings []model.Holding, err error)
	GetHolding(ctx context.Context, userID int64, symbol string) (shares int, err error)
	GetTransactions(ctx context.Context, userID int64) (trxs []model.Transaction, err error)
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type QuoteApi interface {
	GetQuote(ctx context.Context, symbol string) (model.Quote, error)
}

type ReportGenerator interface {
	Generate(ctx context.Context, trxs []model.Transaction) (fileBytes []byte, fileExtension string, err error)
}

type TradingService struct {
	repo            Repository
	quoteApi        QuoteApi
	reportGenerator ReportGenerator
}

func New(repo Repository, quoteApi QuoteApi, reportGenerator ReportGenerator) *TradingService {
	return &TradingService{
		repo:            repo,
		quoteApi:        quoteApi,
		reportGenerator: reportGenerator,
	}
}

func (s *TradingService) Register(ctx context.Context, username, password string) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Register"

	slog.Debug("Register start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Register finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("got error from bcrypt.GenerateFromPassword", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	userID, err = s.repo.InsertUser(ctx, username, string(hash))
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return 0, service.ErrAlreadyExists
		}
		slog.Error("got error from repo.InsertUser", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	return userID, nil
}

func (s *TradingService) Login(ctx context.Context, username, password string) (userID int64, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Login"

	slog.Debug("Login start", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	defer func() {
		slog.Debug("Login finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("username", username))
	}()

	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, service.ErrWrongCredentials
		}
		slog.Error("got error from repo.GetUserByUsername", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return 0, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return 0, service.ErrWrongCredentials
	}

	return user.UserID, nil
}

// GetQuote treats every provider failure as "no quote available": an unknown
// symbol and an upstream outage are indistinguishable to the caller.
func (s *TradingService) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetQuote"

	slog.Debug("GetQuote start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	defer func() {
		slog.Debug("GetQuote finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	}()

	quote, err := s.quoteApi.GetQuote(ctx, symbol)
	if err != nil {
		slog.Warn("can't get quote from quoteApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Quote{}, service.ErrNotFound
	}

	return quote, nil
}

// GetPortfolio values every held symbol at a freshly fetched quote, one
// lookup per distinct symbol.
func (s *TradingService) GetPortfolio(ctx context.Context, userID int64) (portfolio model.Portfolio, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetPortfolio"

	slog.Debug("GetPortfolio start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("GetPortfolio finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	cash, err := s.repo.GetCash(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetCash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Portfolio{}, err
	}

	portfolio.Cash = cash
	portfolio.TotalValue = cash
	portfolio.GrandTotal = cash

	for _, holding := range holdings {
		quote, err := s.GetQuote(ctx, holding.Symbol)
		if err != nil {
			return model.Portfolio{}, err
		}

		value := quote.Price.Mul(decimal.NewFromInt(int64(holding.Shares)))
		portfolio.Positions = append(portfolio.Positions, model.Position{
			Symbol: holding.Symbol,
			Shares: holding.Shares,
			Price:  quote.Price,
			Value:  value,
		})

		portfolio.TotalValue = portfolio.TotalValue.Add(value)
		portfolio.GrandTotal = portfolio.GrandTotal.Add(value)
	}

	return portfolio, nil
}

// Buy debits cash and appends a positive-shares row as one transaction.
// The user row is locked for the duration so concurrent orders cannot
// overspend the balance.
func (s *TradingService) Buy(ctx context.Context, userID int64, symbol string, shares int) (totalCost decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Buy"

	slog.Debug("Buy start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Buy finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol))
	}()

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	totalCost = quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		cash, err := s.repo.GetCashForUpdate(ctx, userID)
		if err != nil {
			return err
		}

		if cash.LessThan(totalCost) {
			return service.ErrInsufficientFunds
		}

		if err := s.repo.UpdateCash(ctx, userID, totalCost.Neg()); err != nil {
			return err
		}

		return s.repo.InsertTransaction(ctx, userID, model.Transaction{
			Symbol:   symbol,
			Shares:   shares,
			Price:    quote.Price,
			DtCreate: time.Now(),
		})
	})
	if err != nil {
		if !errors.Is(err, service.ErrInsufficientFunds) {
			slog.Error("buy transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return decimal.Decimal{}, err
	}

	return totalCost, nil
}

// Sell credits cash and appends a negative-shares row as one transaction.
// The holding is recomputed with the positive-sum filter, so a fully sold
// symbol reports not found rather than insufficient shares.
func (s *TradingService) Sell(ctx context.Context, userID int64, symbol string, shares int) (totalSale decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Sell"

	slog.Debug("Sell start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol), slog.Int("shares", shares))
	defer func() {
		slog.Debug("Sell finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("symbol", symbol))
	}()

	quote, err := s.GetQuote(ctx, symbol)
	if err != nil {
		return decimal.Decimal{}, err
	}

	totalSale = quote.Price.Mul(decimal.NewFromInt(int64(shares)))

	err = s.repo.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetCashForUpdate(ctx, userID); err != nil {
			return err
		}

		held, err := s.repo.GetHolding(ctx, userID, symbol)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrNotFound
			}
			return err
		}

		if held < shares {
			return service.ErrInsufficientShares
		}

		if err := s.repo.UpdateCash(ctx, userID, totalSale); err != nil {
			return err
		}

		return s.repo.InsertTransaction(ctx, userID, model.Transaction{
			Symbol:   symbol,
			Shares:   -shares,
			Price:    quote.Price,
			DtCreate: time.Now(),
		})
	})
	if err != nil {
		if !errors.Is(err, service.ErrNotFound) && !errors.Is(err, service.ErrInsufficientShares) {
			slog.Error("sell transaction failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
		return decimal.Decimal{}, err
	}

	return totalSale, nil
}

// Deposit credits cash only. Deposits are deliberately absent from the
// transaction log.
func (s *TradingService) Deposit(ctx context.Context, userID int64, amount int) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.Deposit"

	slog.Debug("Deposit start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.Int("amount", amount))
	defer func() {
		slog.Debug("Deposit finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	err := s.repo.UpdateCash(ctx, userID, decimal.NewFromInt(int64(amount)))
	if err != nil {
		slog.Error("got error from repo.UpdateCash", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	return nil
}

func (s *TradingService) GetHoldings(ctx context.Context, userID int64) ([]model.Holding, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetHoldings"

	holdings, err := s.repo.GetHoldings(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetHoldings", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return holdings, nil
}

func (s *TradingService) GetHistory(ctx context.Context, userID int64) ([]model.Transaction, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GetHistory"

	trxs, err := s.repo.GetTransactions(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	return trxs, nil
}

func (s *TradingService) GenerateHistoryReport(ctx context.Context, userID int64) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TradingService.GenerateHistoryReport"

	slog.Debug("GenerateHistoryReport start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	defer func() {
		slog.Debug("GenerateHistoryReport finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))
	}()

	trxs, err := s.repo.GetTransactions(ctx, userID)
	if err != nil {
		slog.Error("got error from repo.GetTransactions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return s.reportGenerator.Generate(ctx, trxs)
}
